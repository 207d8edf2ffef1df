package recurrence

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// Engine expands supported recurrence rules into occurrence timestamps.
// An Engine is safe for concurrent use.
type Engine struct {
	cache  *ExpansionCache
	config EngineConfig
}

// NewEngine creates an engine without caching.
func NewEngine() *Engine {
	return &Engine{config: DisabledCacheConfig}
}

// Evaluate expands in into epoch-milli occurrences. A missing start yields
// ErrNoStart and a rule outside the supported subset yields ErrUnsupportedRule;
// callers that don't care about the difference should use Expand.
func (e *Engine) Evaluate(in Input) mo.Result[[]int64] {
	if e.cache != nil {
		if cached, ok := e.cache.Get(in); ok {
			return cached
		}
	}

	result := e.evaluate(in)

	if e.cache != nil {
		e.cache.Set(in, result)
	}
	return result
}

// Expand is Evaluate with every failure collapsed into an empty expansion.
func (e *Engine) Expand(in Input) []int64 {
	return e.Evaluate(in).OrElse([]int64{})
}

// CacheStats reports the engine's cache usage; zero when caching is disabled.
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// Close releases the engine's cache, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

func (e *Engine) evaluate(in Input) mo.Result[[]int64] {
	start, ok := in.Start.Get()
	if !ok {
		return mo.Err[[]int64](ErrNoStart)
	}

	var base []int64
	if in.Rule != "" {
		rule, err := ParseRule(in.Rule)
		if err != nil {
			return mo.Err[[]int64](err)
		}
		if e.config.MaxCount > 0 && rule.Count > e.config.MaxCount {
			return mo.Err[[]int64](fmt.Errorf("%w: COUNT %d exceeds limit %d", ErrUnsupportedRule, rule.Count, e.config.MaxCount))
		}
		base = emit(rule, time.UnixMilli(start).In(Location(in.Timezone)))
	}

	return mo.Ok(applyExceptionsAndAdditions(base, in.Exceptions, in.Additions))
}

// emit produces the base occurrences of rule, before exceptions and additions.
func emit(rule Rule, start time.Time) []int64 {
	out := make([]int64, 0, rule.Count)
	add := func(t time.Time) {
		if rule.Until != nil && t.After(*rule.Until) {
			return
		}
		out = append(out, t.UnixMilli())
	}

	cur := start
	switch rule.Freq {
	case Daily:
		for i := 0; i < rule.Count; i++ {
			add(cur)
			cur = cur.AddDate(0, 0, rule.Interval)
		}
	case Weekly:
		selected := make(map[time.Weekday]bool, len(rule.ByDay))
		for _, wd := range rule.ByDay {
			selected[wd] = true
		}
		// Count bounds the number of 7-day windows scanned, not the number of hits.
		for i := 0; i < rule.Count; i++ {
			for j := 0; j < 7; j++ {
				if selected[cur.Weekday()] {
					add(cur)
				}
				cur = cur.AddDate(0, 0, 1)
			}
			cur = cur.AddDate(0, 0, 7*(rule.Interval-1))
		}
	case Monthly:
		day := 1
		if len(rule.ByMonthDay) > 0 {
			day = rule.ByMonthDay[0]
		}
		for i := 0; i < rule.Count; i++ {
			cur = withMonthDay(cur, day)
			add(cur)
			cur = addMonthsClamped(cur, rule.Interval)
		}
	case Yearly:
		for i := 0; i < rule.Count; i++ {
			add(cur)
			cur = addMonthsClamped(cur, 12*rule.Interval)
		}
	}
	return out
}

// applyExceptionsAndAdditions removes every exception from base and then appends
// the additions that are not present yet, in their given order. No re-sorting.
func applyExceptionsAndAdditions(base, exceptions, additions []int64) []int64 {
	excluded := make(map[int64]struct{}, len(exceptions))
	for _, ex := range exceptions {
		excluded[ex] = struct{}{}
	}

	out := make([]int64, 0, len(base)+len(additions))
	present := make(map[int64]struct{}, len(base)+len(additions))
	for _, ts := range base {
		if _, skip := excluded[ts]; skip {
			continue
		}
		out = append(out, ts)
		present[ts] = struct{}{}
	}
	for _, ts := range additions {
		if _, dup := present[ts]; dup {
			continue
		}
		out = append(out, ts)
		present[ts] = struct{}{}
	}
	return out
}
