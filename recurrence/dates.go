package recurrence

import (
	"strconv"
	"strings"
	"time"
)

// Location resolves the evaluation zone for a start timezone value.
// All-day and floating values evaluate in UTC, as do names the zone database does not know.
func Location(tz string) *time.Location {
	if tz == "" || tz == TZAllDay {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseDateList decodes a comma-separated list of decimal epoch millis.
// Blank and malformed tokens are skipped.
func ParseDateList(csv string) []int64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []int64
	for _, token := range strings.Split(csv, ",") {
		ms, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, ms)
	}
	return out
}

// FormatDateList encodes millis as a comma-separated list, preserving order and duplicates.
func FormatDateList(dates []int64) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return strings.Join(parts, ",")
}

// AppendDate appends ms to a serialized date list. Duplicates are kept.
func AppendDate(csv string, ms int64) string {
	if strings.TrimSpace(csv) == "" {
		return strconv.FormatInt(ms, 10)
	}
	return csv + "," + strconv.FormatInt(ms, 10)
}

// RecurID serializes the nominal start of an occurrence the way RECURRENCE-ID values
// are written: a DATE for all-day starts, otherwise a local DATE-TIME in the start's zone.
func RecurID(ms int64, tz string) string {
	t := time.UnixMilli(ms).In(Location(tz))
	if tz == TZAllDay {
		return t.Format("20060102")
	}
	return t.Format("20060102T150405")
}

// addMonthsClamped moves t by n months, clamping the day to the last day of the
// target month instead of overflowing into the next one.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// withMonthDay sets the day of month on t, clamped into the month.
// Negative days count back from the month end (-1 is the last day).
func withMonthDay(t time.Time, day int) time.Time {
	y, m, _ := t.Date()
	last := daysIn(y, m)
	if day < 0 {
		day = last + day + 1
	}
	day = max(1, min(day, last))
	return time.Date(y, m, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
