package recurrence

import (
	"errors"
	"time"

	"github.com/samber/mo"
)

// TZAllDay is the timezone sentinel marking a start (or due) value as a date without time.
const TZAllDay = "ALLDAY"

var (
	// ErrUnsupportedRule is returned for rules outside the supported RRULE subset,
	// malformed rules and unknown frequencies.
	ErrUnsupportedRule = errors.New("unsupported recurrence rule")
	// ErrNoStart is returned when expansion is requested without a start timestamp.
	ErrNoStart = errors.New("recurrence start is not set")
)

// Frequency is the FREQ part of a supported rule
type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Monthly
	Yearly
)

// String returns the RRULE spelling of the frequency.
func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return "UNKNOWN"
	}
}

// Rule is the decoded form of a supported RRULE value.
type Rule struct {
	Freq       Frequency
	Interval   int            // always >= 1 after parsing
	Count      int            // number of steps; windows for Weekly
	Until      *time.Time     // optional upper bound, applied on top of Count
	ByDay      []time.Weekday // Weekly only
	ByMonthDay []int          // Monthly only, first value is used
}

// Input carries everything the expander needs for one entry.
type Input struct {
	Rule       string           // RRULE value, with or without the "RRULE:" prefix
	Start      mo.Option[int64] // epoch millis
	Timezone   string           // TZAllDay, "" (floating) or an IANA zone name
	Exceptions []int64          // EXDATE values in epoch millis
	Additions  []int64          // RDATE values in epoch millis
}

// Info is the recurrence metadata carried by an iCalendar component.
type Info struct {
	RRule        string  // without "RRULE:" prefix
	RDate        []int64 // additional recurrence dates
	ExDate       []int64 // exception dates
	RecurrenceID string  // set on instances: serialized nominal start of the occurrence
}
