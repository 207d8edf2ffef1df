package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/storage"
	"github.com/cyp0633/libjtx/storage/memory"
)

func TestRegenerateAll(t *testing.T) {
	store := memory.New()
	engine := recurrence.NewEngineWithConfig(recurrence.DefaultEngineConfig)
	defer engine.Close()
	m := New(store, WithWorkers(2), WithEngine(engine), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	var originals []int64
	for i, rule := range []string{"FREQ=DAILY;COUNT=3", "FREQ=WEEKLY;COUNT=1;BYDAY=MO,TU,WE", "FREQ=YEARLY;COUNT=4"} {
		e := storage.NewMockJournal(0, "orig", "series", 1622541600000+int64(i)*day, "")
		e.RRule = rule
		originals = append(originals, insert(t, store, e))
	}
	// additions alone make a series
	rdateOnly := storage.NewMockJournal(0, "rdate", "series", 1622541600000, "")
	rdateOnly.RDate = []int64{1622541600000 + 10*day}
	originals = append(originals, insert(t, store, rdateOnly))

	insert(t, store, storage.NewMockJournal(0, "plain", "plain", 1622541600000, ""))

	created, err := m.RegenerateAll(ctx)
	require.NoError(t, err)

	// daily: 2, weekly window from Wed Jun 2 hits Mon Jun 7 and Tue Jun 8 plus the start itself: 2, yearly: 3, rdate: 1
	assert.Equal(t, 8, created)
	assert.Len(t, instancesOf(store, originals[0]), 2)
	assert.Len(t, instancesOf(store, originals[1]), 2)
	assert.Len(t, instancesOf(store, originals[2]), 3)
	assert.Len(t, instancesOf(store, originals[3]), 1)

	// a second pass replaces instead of piling up
	created, err = m.RegenerateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, created)
	assert.Len(t, instancesOf(store, originals[0]), 2)
}

func TestRegenerateAll_Errors(t *testing.T) {
	t.Run("listing fails", func(t *testing.T) {
		gw := new(storage.MockGateway)
		gw.On("ListOriginalIDs", mock.Anything).Return(nil, errors.New("no table"))

		_, err := newTestManager(gw).RegenerateAll(context.Background())
		assert.ErrorContains(t, err, "no table")
	})

	t.Run("one original fails", func(t *testing.T) {
		gw := new(storage.MockGateway)
		gw.On("ListOriginalIDs", mock.Anything).Return([]int64{1}, nil)
		gw.On("GetEntryByID", mock.Anything, int64(1)).Return(nil, storage.NewError(storage.TypeNotFound, "entry not found", nil))

		created, err := newTestManager(gw).RegenerateAll(context.Background())
		assert.Zero(t, created)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
