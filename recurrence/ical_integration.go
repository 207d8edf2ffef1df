package recurrence

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const (
	icalDateLayout     = "20060102"
	icalDateTimeLayout = "20060102T150405"
)

// InfoFromComponent extracts recurrence information from an iCal component
func InfoFromComponent(comp *ical.Component) Info {
	info := Info{}

	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil && prop.Value != "" {
		info.RRule = strings.TrimPrefix(prop.Value, rrulePrefix)
	}

	for _, prop := range comp.Props.Values(ical.PropRecurrenceDates) {
		info.RDate = append(info.RDate, parseDateValues(prop)...)
	}

	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		info.ExDate = append(info.ExDate, parseDateValues(prop)...)
	}

	if prop := comp.Props.Get(ical.PropRecurrenceID); prop != nil {
		info.RecurrenceID = prop.Value
	}

	return info
}

// ApplyInfo writes info onto comp. tz is the timezone mode of the component's DTSTART
// and decides how RDATE/EXDATE values and the RECURRENCE-ID are typed.
func ApplyInfo(comp *ical.Component, info Info, tz string) {
	comp.Props.Del(ical.PropRecurrenceRule)
	comp.Props.Del(ical.PropRecurrenceDates)
	comp.Props.Del(ical.PropExceptionDates)
	comp.Props.Del(ical.PropRecurrenceID)

	if info.RRule != "" {
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = info.RRule
		comp.Props.Set(prop)
	}
	if len(info.RDate) > 0 {
		comp.Props.Set(dateListProp(ical.PropRecurrenceDates, info.RDate, tz))
	}
	if len(info.ExDate) > 0 {
		comp.Props.Set(dateListProp(ical.PropExceptionDates, info.ExDate, tz))
	}
	if info.RecurrenceID != "" {
		prop := ical.NewProp(ical.PropRecurrenceID)
		prop.Value = info.RecurrenceID
		setDateParams(prop, tz)
		comp.Props.Set(prop)
	}
}

func dateListProp(name string, dates []int64, tz string) *ical.Prop {
	prop := ical.NewProp(name)
	loc := Location(tz)
	values := make([]string, len(dates))
	for i, ms := range dates {
		t := time.UnixMilli(ms).In(loc)
		if tz == TZAllDay {
			values[i] = t.Format(icalDateLayout)
		} else {
			values[i] = t.Format(icalDateTimeLayout)
		}
	}
	prop.Value = strings.Join(values, ",")
	setDateParams(prop, tz)
	return prop
}

func setDateParams(prop *ical.Prop, tz string) {
	switch tz {
	case TZAllDay:
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
	case "":
	default:
		prop.Params.Set(ical.ParamTimezoneID, tz)
	}
}

// parseDateValues parses an RDATE/EXDATE property into epoch millis, honoring
// VALUE=DATE and TZID. Unparseable values are dropped.
func parseDateValues(prop ical.Prop) []int64 {
	loc := time.UTC
	if tzid := prop.Params.Get(ical.ParamTimezoneID); tzid != "" {
		loc = Location(tzid)
	}
	isDateOnly := strings.EqualFold(prop.Params.Get(ical.ParamValue), string(ical.ValueDate))

	var out []int64
	for _, raw := range strings.Split(prop.Value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := parseDateTime(raw, loc, isDateOnly)
		if err != nil {
			continue
		}
		out = append(out, t.UnixMilli())
	}
	return out
}

func parseDateTime(value string, loc *time.Location, isDateOnly bool) (time.Time, error) {
	if isDateOnly || len(value) == len(icalDateLayout) {
		// date-only values are stored as midnight UTC, like all-day starts
		return time.ParseInLocation(icalDateLayout, value, time.UTC)
	}
	if strings.HasSuffix(value, "Z") {
		return time.ParseInLocation(icalDateTimeLayout+"Z", value, time.UTC)
	}
	return time.ParseInLocation(icalDateTimeLayout, value, loc)
}
