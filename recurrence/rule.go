package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const rrulePrefix = "RRULE:"

// supportedKeys lists the RRULE parts the expander understands. Anything else
// (BYHOUR, BYSETPOS, WKST, X- extensions, ...) makes the rule unsupported.
var supportedKeys = map[string]struct{}{
	"FREQ":       {},
	"INTERVAL":   {},
	"COUNT":      {},
	"UNTIL":      {},
	"BYDAY":      {},
	"BYMONTHDAY": {},
}

// ParseRule decodes an RRULE value restricted to the supported subset.
// All failures wrap ErrUnsupportedRule.
func ParseRule(value string) (Rule, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), rrulePrefix)
	if value == "" {
		return Rule{}, fmt.Errorf("%w: empty rule", ErrUnsupportedRule)
	}

	seen := make(map[string]bool, len(supportedKeys))
	parts := make([]string, 0, len(supportedKeys))
	for _, part := range strings.Split(value, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, _, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, fmt.Errorf("%w: malformed part %q", ErrUnsupportedRule, part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if _, supported := supportedKeys[key]; !supported {
			return Rule{}, fmt.Errorf("%w: %s is not supported", ErrUnsupportedRule, key)
		}
		if seen[key] {
			return Rule{}, fmt.Errorf("%w: %s given more than once", ErrUnsupportedRule, key)
		}
		seen[key] = true
		parts = append(parts, part)
	}
	if !seen["COUNT"] {
		return Rule{}, fmt.Errorf("%w: COUNT is required", ErrUnsupportedRule)
	}
	value = strings.Join(parts, ";")

	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrUnsupportedRule, err)
	}

	rule := Rule{
		Interval:   opt.Interval,
		Count:      opt.Count,
		ByMonthDay: opt.Bymonthday,
	}
	switch opt.Freq {
	case rrule.DAILY:
		rule.Freq = Daily
	case rrule.WEEKLY:
		rule.Freq = Weekly
	case rrule.MONTHLY:
		rule.Freq = Monthly
	case rrule.YEARLY:
		rule.Freq = Yearly
	default:
		return Rule{}, fmt.Errorf("%w: frequency %v", ErrUnsupportedRule, opt.Freq)
	}
	if !seen["INTERVAL"] {
		rule.Interval = 1
	}
	if rule.Interval <= 0 || rule.Count <= 0 {
		return Rule{}, fmt.Errorf("%w: INTERVAL and COUNT must be positive", ErrUnsupportedRule)
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		rule.Until = &until
	}
	for _, wd := range opt.Byweekday {
		// rrule-go numbers weekdays from Monday = 0
		rule.ByDay = append(rule.ByDay, time.Weekday((wd.Day()+1)%7))
	}

	return rule, nil
}

// String re-encodes the rule in RRULE grammar (without the "RRULE:" prefix).
func (r Rule) String() string {
	opt := rrule.ROption{
		Interval:   r.Interval,
		Count:      r.Count,
		Bymonthday: r.ByMonthDay,
	}
	switch r.Freq {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Monthly:
		opt.Freq = rrule.MONTHLY
	default:
		opt.Freq = rrule.YEARLY
	}
	if r.Until != nil {
		opt.Until = *r.Until
	}
	days := []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}
	for _, wd := range r.ByDay {
		opt.Byweekday = append(opt.Byweekday, days[wd])
	}
	return opt.RRuleString()
}
