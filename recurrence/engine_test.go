package recurrence

import (
	"strconv"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(year int, month time.Month, day, hour, min int) int64 {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC).UnixMilli()
}

func TestEngine_Expand(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name     string
		input    Input
		expected []int64
	}{
		{
			name: "Yearly every second year",
			input: Input{
				Rule:  "FREQ=YEARLY;COUNT=3;INTERVAL=2",
				Start: mo.Some[int64](1622494800000),
			},
			expected: []int64{1622494800000, 1685566800000, 1748725200000},
		},
		{
			name: "Weekly on weekend days with exceptions",
			input: Input{
				Rule:       "FREQ=WEEKLY;COUNT=2;INTERVAL=2;BYDAY=FR,SA,SU",
				Start:      mo.Some[int64](1622541600000),
				Exceptions: []int64{1622973600000, 1624096800000},
			},
			expected: []int64{1622800800000, 1622887200000, 1624010400000, 1624183200000},
		},
		{
			name: "Monthly on the fifth",
			input: Input{
				Rule:  "FREQ=MONTHLY;COUNT=3;INTERVAL=1;BYMONTHDAY=5",
				Start: mo.Some[int64](1622505600000),
			},
			expected: []int64{1622851200000, 1625443200000, 1628121600000},
		},
		{
			name: "Unsupported extra part",
			input: Input{
				Rule:  "FREQ=DAILY;COUNT=2;INTERVAL=4;WHATEVER",
				Start: mo.Some[int64](1622541600000),
			},
			expected: []int64{},
		},
		{
			name: "Daily every fourth day",
			input: Input{
				Rule:  "FREQ=DAILY;COUNT=3;INTERVAL=4",
				Start: mo.Some(ms(2021, 6, 28, 8, 30)),
			},
			expected: []int64{ms(2021, 6, 28, 8, 30), ms(2021, 7, 2, 8, 30), ms(2021, 7, 6, 8, 30)},
		},
		{
			name: "Interval defaults to one",
			input: Input{
				Rule:  "FREQ=DAILY;COUNT=2",
				Start: mo.Some(ms(2021, 12, 31, 0, 0)),
			},
			expected: []int64{ms(2021, 12, 31, 0, 0), ms(2022, 1, 1, 0, 0)},
		},
		{
			name: "Yearly from leap day clamps to February 28",
			input: Input{
				Rule:  "FREQ=YEARLY;COUNT=3",
				Start: mo.Some(ms(2024, 2, 29, 9, 0)),
			},
			expected: []int64{ms(2024, 2, 29, 9, 0), ms(2025, 2, 28, 9, 0), ms(2026, 2, 28, 9, 0)},
		},
		{
			name: "Yearly every four years keeps leap day",
			input: Input{
				Rule:  "FREQ=YEARLY;COUNT=2;INTERVAL=4",
				Start: mo.Some(ms(2024, 2, 29, 9, 0)),
			},
			expected: []int64{ms(2024, 2, 29, 9, 0), ms(2028, 2, 29, 9, 0)},
		},
		{
			name: "Monthly on the 31st clamps short months",
			input: Input{
				Rule:  "FREQ=MONTHLY;COUNT=3;BYMONTHDAY=31",
				Start: mo.Some(ms(2021, 1, 1, 12, 0)),
			},
			expected: []int64{ms(2021, 1, 31, 12, 0), ms(2021, 2, 28, 12, 0), ms(2021, 3, 31, 12, 0)},
		},
		{
			name: "Monthly without day defaults to the first",
			input: Input{
				Rule:  "FREQ=MONTHLY;COUNT=2;INTERVAL=2",
				Start: mo.Some(ms(2021, 6, 15, 7, 0)),
			},
			expected: []int64{ms(2021, 6, 1, 7, 0), ms(2021, 8, 1, 7, 0)},
		},
		{
			name: "Weekly window starts at the start date",
			input: Input{
				Rule:  "FREQ=WEEKLY;COUNT=2;BYDAY=MO",
				Start: mo.Some(ms(2021, 6, 6, 10, 0)),
			},
			expected: []int64{ms(2021, 6, 7, 10, 0), ms(2021, 6, 14, 10, 0)},
		},
		{
			name: "Weekly window without selected days is empty",
			input: Input{
				Rule:  "FREQ=WEEKLY;COUNT=3",
				Start: mo.Some(ms(2021, 6, 6, 10, 0)),
			},
			expected: []int64{},
		},
		{
			name: "Additions are appended unsorted and deduplicated",
			input: Input{
				Rule:      "FREQ=DAILY;COUNT=2",
				Start:     mo.Some(ms(2021, 6, 10, 0, 0)),
				Additions: []int64{ms(2021, 6, 1, 0, 0), ms(2021, 6, 11, 0, 0), ms(2021, 6, 1, 0, 0)},
			},
			expected: []int64{ms(2021, 6, 10, 0, 0), ms(2021, 6, 11, 0, 0), ms(2021, 6, 1, 0, 0)},
		},
		{
			name: "Addition matching an exception survives",
			input: Input{
				Rule:       "FREQ=DAILY;COUNT=2",
				Start:      mo.Some(ms(2021, 6, 10, 0, 0)),
				Exceptions: []int64{ms(2021, 6, 11, 0, 0)},
				Additions:  []int64{ms(2021, 6, 11, 0, 0)},
			},
			expected: []int64{ms(2021, 6, 10, 0, 0), ms(2021, 6, 11, 0, 0)},
		},
		{
			name: "Additions without rule",
			input: Input{
				Start:     mo.Some(ms(2021, 6, 10, 0, 0)),
				Additions: []int64{ms(2021, 6, 20, 0, 0)},
			},
			expected: []int64{ms(2021, 6, 20, 0, 0)},
		},
		{
			name: "Until bounds the count",
			input: Input{
				Rule:  "FREQ=DAILY;COUNT=10;UNTIL=20210612T000000Z",
				Start: mo.Some(ms(2021, 6, 10, 0, 0)),
			},
			expected: []int64{ms(2021, 6, 10, 0, 0), ms(2021, 6, 11, 0, 0), ms(2021, 6, 12, 0, 0)},
		},
		{
			name:     "Missing start",
			input:    Input{Rule: "FREQ=DAILY;COUNT=2"},
			expected: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.Expand(tt.input))
		})
	}
}

func TestEngine_EvaluateDistinguishesFailures(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Evaluate(Input{Rule: "FREQ=DAILY;COUNT=2"}).Get()
	assert.ErrorIs(t, err, ErrNoStart)

	_, err = engine.Evaluate(Input{Rule: "FREQ=HOURLY;COUNT=2", Start: mo.Some[int64](0)}).Get()
	assert.ErrorIs(t, err, ErrUnsupportedRule)

	got, err := engine.Evaluate(Input{Rule: "FREQ=WEEKLY;COUNT=1", Start: mo.Some[int64](0)}).Get()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_ZonedExpansionKeepsWallClock(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)

	engine := NewEngine()
	start := time.Date(2021, 3, 27, 9, 0, 0, 0, loc) // the day before the DST switch
	got := engine.Expand(Input{
		Rule:     "FREQ=DAILY;COUNT=2",
		Start:    mo.Some(start.UnixMilli()),
		Timezone: "Europe/Vienna",
	})

	require.Len(t, got, 2)
	second := time.UnixMilli(got[1]).In(loc)
	assert.Equal(t, 9, second.Hour())
	assert.Equal(t, 23*time.Hour, time.UnixMilli(got[1]).Sub(start))
}

func TestEngine_AllDayEvaluatesInUTC(t *testing.T) {
	engine := NewEngine()
	start := ms(2021, 6, 30, 0, 0)

	got := engine.Expand(Input{
		Rule:     "FREQ=MONTHLY;COUNT=2;BYMONTHDAY=30",
		Start:    mo.Some(start),
		Timezone: TZAllDay,
	})

	assert.Equal(t, []int64{start, ms(2021, 7, 30, 0, 0)}, got)
}

func TestEngine_MaxCount(t *testing.T) {
	engine := NewEngineWithConfig(EngineConfig{MaxCount: 5})
	defer engine.Close()

	_, err := engine.Evaluate(Input{Rule: "FREQ=DAILY;COUNT=6", Start: mo.Some[int64](0)}).Get()
	assert.ErrorIs(t, err, ErrUnsupportedRule)
	assert.Len(t, engine.Expand(Input{Rule: "FREQ=DAILY;COUNT=5", Start: mo.Some[int64](0)}), 5)
}

func TestEngine_CachedResultsAreIsolated(t *testing.T) {
	engine := NewEngineWithConfig(DefaultEngineConfig)
	defer engine.Close()

	in := Input{Rule: "FREQ=DAILY;COUNT=3", Start: mo.Some(ms(2021, 1, 1, 0, 0))}
	first := engine.Expand(in)
	first[0] = 42

	second := engine.Expand(in)
	assert.Equal(t, ms(2021, 1, 1, 0, 0), second[0])
	assert.Equal(t, 1, engine.CacheStats().Entries)
}

func TestExpand_DailySpacingProperty(t *testing.T) {
	engine := NewEngine()
	start := ms(2020, 1, 30, 6, 15)

	for count := 1; count <= 6; count++ {
		for interval := 1; interval <= 5; interval++ {
			got := engine.Expand(Input{
				Rule:  "FREQ=DAILY;COUNT=" + strconv.Itoa(count) + ";INTERVAL=" + strconv.Itoa(interval),
				Start: mo.Some(start),
			})
			require.Len(t, got, count)
			for i, ts := range got {
				want := time.UnixMilli(start).UTC().AddDate(0, 0, i*interval).UnixMilli()
				assert.Equal(t, want, ts)
			}
		}
	}
}

func TestExpand_ExceptionsAreExcluded(t *testing.T) {
	engine := NewEngine()
	start := ms(2021, 1, 1, 0, 0)
	all := engine.Expand(Input{Rule: "FREQ=DAILY;COUNT=10", Start: mo.Some(start)})
	exceptions := []int64{all[1], all[4], all[9], ms(1999, 1, 1, 0, 0)}

	got := engine.Expand(Input{Rule: "FREQ=DAILY;COUNT=10", Start: mo.Some(start), Exceptions: exceptions})

	assert.Len(t, got, 7)
	for _, ex := range exceptions {
		assert.NotContains(t, got, ex)
	}
}
