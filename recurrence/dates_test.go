package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateList(t *testing.T) {
	assert.Nil(t, ParseDateList(""))
	assert.Nil(t, ParseDateList("  "))
	assert.Equal(t, []int64{1, 2, 2, 3}, ParseDateList("1, 2,2,,x,3"))

	assert.Equal(t, "", FormatDateList(nil))
	assert.Equal(t, "1622494800000,5", FormatDateList([]int64{1622494800000, 5}))
}

func TestAppendDate_KeepsDuplicates(t *testing.T) {
	csv := AppendDate("", 10)
	assert.Equal(t, "10", csv)

	csv = AppendDate(csv, 10)
	assert.Equal(t, "10,10", csv)
	assert.Equal(t, []int64{10, 10}, ParseDateList(csv))
}

func TestRecurID(t *testing.T) {
	ts := time.Date(2021, 6, 1, 22, 30, 0, 0, time.UTC).UnixMilli()

	assert.Equal(t, "20210601", RecurID(ts, TZAllDay))
	assert.Equal(t, "20210601T223000", RecurID(ts, ""))
	assert.Equal(t, "20210602T003000", RecurID(ts, "Europe/Vienna"))
	assert.Equal(t, "20210601T223000", RecurID(ts, "Not/AZone"))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, Location(""))
	assert.Equal(t, time.UTC, Location(TZAllDay))
	assert.Equal(t, time.UTC, Location("Mars/Olympus_Mons"))
	assert.Equal(t, "Asia/Shanghai", Location("Asia/Shanghai").String())
}

func TestMonthArithmetic(t *testing.T) {
	jan31 := time.Date(2021, 1, 31, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2021, 2, 28, 8, 0, 0, 0, time.UTC), addMonthsClamped(jan31, 1))
	assert.Equal(t, time.Date(2020, 12, 31, 8, 0, 0, 0, time.UTC), addMonthsClamped(jan31, -1))
	assert.Equal(t, time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC), addMonthsClamped(time.Date(2023, 2, 28, 8, 0, 0, 0, time.UTC), 12))
	assert.Equal(t, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), addMonthsClamped(time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC), 1))
	assert.Equal(t, time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC), addMonthsClamped(time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), 12))

	assert.Equal(t, time.Date(2021, 2, 28, 8, 0, 0, 0, time.UTC), withMonthDay(time.Date(2021, 2, 3, 8, 0, 0, 0, time.UTC), 31))
	assert.Equal(t, time.Date(2021, 4, 30, 8, 0, 0, 0, time.UTC), withMonthDay(time.Date(2021, 4, 3, 8, 0, 0, 0, time.UTC), -1))
	assert.Equal(t, time.Date(2021, 4, 1, 8, 0, 0, 0, time.UTC), withMonthDay(time.Date(2021, 4, 3, 8, 0, 0, 0, time.UTC), 0))
}
