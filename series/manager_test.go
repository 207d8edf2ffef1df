package series

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/storage"
	"github.com/cyp0633/libjtx/storage/memory"
)

const day = int64(24 * time.Hour / time.Millisecond)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(gw storage.Gateway) *Manager {
	n := 0
	return New(gw,
		WithClock(func() time.Time { return fixedNow }),
		WithUIDGenerator(func() string {
			n++
			return fmt.Sprintf("generated-%d", n)
		}),
	)
}

func insert(t *testing.T, store storage.Gateway, e *storage.Entry) int64 {
	t.Helper()
	id, err := store.InsertEntry(context.Background(), e)
	require.NoError(t, err)
	return id
}

func instancesOf(store *memory.Store, originalID int64) []*storage.Entry {
	var out []*storage.Entry
	for _, e := range store.Entries() {
		if e.RecurOriginalID != nil && *e.RecurOriginalID == originalID {
			out = append(out, e)
		}
	}
	return out
}

func starts(entries []*storage.Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = *e.Dtstart
	}
	return out
}

func TestRegenerate_TodoKeepsDueOffset(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	todo := storage.NewMockTodo(0, "todo", "pay rent", 1622541600000, 1622541650000, "")
	todo.RRule = "FREQ=MONTHLY;COUNT=2;INTERVAL=2;BYMONTHDAY=5"
	id := insert(t, store, todo)

	created, err := m.Regenerate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	instances := instancesOf(store, id)
	require.Len(t, instances, 2)
	assert.Equal(t, []int64{1622887200000, 1628157600000}, starts(instances))
	for _, inst := range instances {
		assert.Equal(t, int64(1622541650000-1622541600000), *inst.Due-*inst.Dtstart)
	}
}

func TestRegenerate_InstanceShape(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	original := storage.NewMockJournal(0, "orig", "standup", 1622541600000, "Europe/Vienna")
	original.RRule = "FREQ=DAILY;COUNT=3"
	original.Description = "notes"
	original.Sequence = 7
	original.Dirty = true
	original.Filename = "orig.ics"
	original.ETag = `"etag"`
	original.ScheduleTag = "tag"
	original.RDate = []int64{1623146400000}
	original.ExDate = []int64{1622714400000}
	id := insert(t, store, original)

	created, err := m.Regenerate(ctx, id)
	require.NoError(t, err)
	// Jun 1 is the original itself, Jun 3 is excepted, Jun 2 and the Jun 8 addition remain
	assert.Equal(t, 2, created)

	instances := instancesOf(store, id)
	require.Len(t, instances, 2)
	assert.Equal(t, []int64{1622628000000, 1623146400000}, starts(instances))

	inst := instances[0]
	assert.Equal(t, "generated-1", inst.UID)
	assert.Equal(t, storage.KindJournal, inst.Kind)
	assert.Equal(t, "standup", inst.Summary)
	assert.Equal(t, "notes", inst.Description)
	assert.Equal(t, "Europe/Vienna", inst.DtstartTimezone)
	assert.Equal(t, "20210602T120000", inst.RecurID)
	assert.Equal(t, id, *inst.RecurOriginalID)
	assert.True(t, inst.IsLinkedRecurringInstance)
	assert.Zero(t, inst.Sequence)
	assert.False(t, inst.Dirty)
	assert.Empty(t, inst.Filename)
	assert.Empty(t, inst.ETag)
	assert.Empty(t, inst.ScheduleTag)
	assert.Empty(t, inst.RRule)
	assert.Empty(t, inst.RDate)
	assert.Empty(t, inst.ExDate)
	assert.Equal(t, fixedNow.UnixMilli(), inst.Dtstamp)
	assert.Equal(t, fixedNow.UnixMilli(), inst.Created)
	assert.Equal(t, fixedNow.UnixMilli(), inst.LastModified)
	assert.NoError(t, inst.Validate())
}

func TestRegenerate_NeverMaterializesOriginalStart(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)

	start := int64(1622541600000)
	original := storage.NewMockJournal(0, "orig", "daily", start, "")
	original.RRule = "FREQ=DAILY;COUNT=5;INTERVAL=2"
	id := insert(t, store, original)

	created, err := m.Regenerate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 4, created)
	for _, inst := range instancesOf(store, id) {
		assert.NotEqual(t, start, *inst.Dtstart)
	}
}

func TestRegenerate_ReplacesLinkedKeepsDetached(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	original := storage.NewMockJournal(0, "orig", "daily", 1622541600000, "")
	original.RRule = "FREQ=DAILY;COUNT=3"
	id := insert(t, store, original)

	_, err := m.Regenerate(ctx, id)
	require.NoError(t, err)
	first := instancesOf(store, id)
	require.Len(t, first, 2)

	detached, err := m.Detach(ctx, first[0].ID)
	require.NoError(t, err)
	require.True(t, detached)

	created, err := m.Regenerate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	after := instancesOf(store, id)
	require.Len(t, after, 2)
	assert.Equal(t, first[0].ID, after[0].ID, "detached exception survives")
	assert.False(t, after[0].IsLinkedRecurringInstance)
	assert.NotEqual(t, first[1].ID, after[1].ID, "linked instance was recreated")
	assert.Equal(t, *first[1].Dtstart, *after[1].Dtstart)
}

func TestRegenerate_CopiesSubPropertiesNotRelations(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	original := storage.NewMockJournal(0, "orig", "weekly", 1622541600000, "")
	original.RRule = "FREQ=DAILY;COUNT=2"
	id := insert(t, store, original)
	other := insert(t, store, storage.NewMockJournal(0, "other", "other", 0, ""))

	_, err := store.InsertCategory(ctx, &storage.Category{EntryID: id, Text: "work"})
	require.NoError(t, err)
	_, err = store.InsertComment(ctx, &storage.Comment{EntryID: id, Text: "c"})
	require.NoError(t, err)
	_, err = store.InsertAttachment(ctx, &storage.Attachment{EntryID: id, URI: "file:///x"})
	require.NoError(t, err)
	_, err = store.InsertOrganizer(ctx, &storage.Organizer{EntryID: id, CalAddress: "mailto:o@example.com"})
	require.NoError(t, err)
	_, err = store.InsertAttendee(ctx, &storage.Attendee{EntryID: id, CalAddress: "mailto:a@example.com"})
	require.NoError(t, err)
	_, err = store.InsertResource(ctx, &storage.Resource{EntryID: id, Text: "room"})
	require.NoError(t, err)
	_, err = store.InsertRelation(ctx, &storage.Relation{EntryID: id, LinkedEntryID: other, Reltype: storage.RelTypeChild})
	require.NoError(t, err)

	_, err = m.Regenerate(ctx, id)
	require.NoError(t, err)
	instances := instancesOf(store, id)
	require.Len(t, instances, 1)
	instID := instances[0].ID

	subs, err := store.GetSubProperties(ctx, instID)
	require.NoError(t, err)
	require.Len(t, subs.Categories, 1)
	assert.Equal(t, instID, subs.Categories[0].EntryID)
	assert.Equal(t, "work", subs.Categories[0].Text)
	assert.Len(t, subs.Comments, 1)
	assert.Len(t, subs.Attachments, 1)
	require.NotNil(t, subs.Organizer)
	assert.Equal(t, instID, subs.Organizer.EntryID)
	assert.Len(t, subs.Attendees, 1)
	assert.Len(t, subs.Resources, 1)

	children, err := store.GetChildIDs(ctx, instID)
	require.NoError(t, err)
	assert.Empty(t, children)

	// the original keeps its own rows
	origSubs, _ := store.GetSubProperties(ctx, id)
	assert.Equal(t, id, origSubs.Categories[0].EntryID)
}

func TestRegenerate_NothingToGenerate(t *testing.T) {
	tests := []struct {
		name  string
		entry *storage.Entry
	}{
		{
			name: "no start",
			entry: &storage.Entry{
				UID:   "nostart",
				Kind:  storage.KindJournal,
				RRule: "FREQ=DAILY;COUNT=3",
			},
		},
		{
			name: "unsupported rule",
			entry: func() *storage.Entry {
				e := storage.NewMockJournal(0, "bad", "bad", 1622541600000, "")
				e.RRule = "FREQ=DAILY;COUNT=2;INTERVAL=4;WHATEVER"
				return e
			}(),
		},
		{
			name:  "no rule",
			entry: storage.NewMockJournal(0, "plain", "plain", 1622541600000, ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			m := newTestManager(store)
			id := insert(t, store, tt.entry)

			created, err := m.Regenerate(context.Background(), id)
			require.NoError(t, err)
			assert.Zero(t, created)
			assert.Empty(t, instancesOf(store, id))
		})
	}
}

func TestRegenerate_UnknownOriginal(t *testing.T) {
	m := newTestManager(memory.New())
	_, err := m.Regenerate(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDetach(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	original := storage.NewMockJournal(0, "orig", "daily", 1622541600000, "")
	original.RRule = "FREQ=DAILY;COUNT=3"
	id := insert(t, store, original)
	_, err := m.Regenerate(ctx, id)
	require.NoError(t, err)

	instance := instancesOf(store, id)[0]
	x := *instance.Dtstart

	detached, err := m.Detach(ctx, instance.ID)
	require.NoError(t, err)
	assert.True(t, detached)

	gotOriginal, _ := store.GetEntryByID(ctx, id)
	assert.Equal(t, []int64{x}, gotOriginal.ExDate)
	assert.Equal(t, int64(1), gotOriginal.Sequence)
	assert.True(t, gotOriginal.Dirty)
	assert.Equal(t, fixedNow.UnixMilli(), gotOriginal.LastModified)

	gotInstance, _ := store.GetEntryByID(ctx, instance.ID)
	assert.False(t, gotInstance.IsLinkedRecurringInstance)
	assert.Equal(t, int64(1), gotInstance.Sequence)

	// the sibling instance is untouched
	sibling, _ := store.GetEntryByID(ctx, instancesOf(store, id)[1].ID)
	assert.True(t, sibling.IsLinkedRecurringInstance)

	// no-op once detached
	detached, err = m.Detach(ctx, instance.ID)
	require.NoError(t, err)
	assert.False(t, detached)
	gotOriginal, _ = store.GetEntryByID(ctx, id)
	assert.Len(t, gotOriginal.ExDate, 1)

	// the detached date is skipped on the next pass
	_, err = m.Regenerate(ctx, id)
	require.NoError(t, err)
	linked := 0
	for _, inst := range instancesOf(store, id) {
		if inst.IsLinkedRecurringInstance {
			linked++
			assert.NotEqual(t, x, *inst.Dtstart)
		}
	}
	assert.Equal(t, 1, linked)
}

func TestDetach_KeepsDuplicateExceptionDates(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	x := int64(1622628000000)
	original := storage.NewMockJournal(0, "orig", "daily", 1622541600000, "")
	original.RRule = "FREQ=DAILY;COUNT=3"
	original.ExDate = []int64{x}
	id := insert(t, store, original)

	instance := storage.NewMockJournal(0, "inst", "daily", x, "")
	instance.RecurOriginalID = &id
	instance.IsLinkedRecurringInstance = true
	instID := insert(t, store, instance)

	detached, err := m.Detach(ctx, instID)
	require.NoError(t, err)
	assert.True(t, detached)

	got, _ := store.GetEntryByID(ctx, id)
	assert.Equal(t, []int64{x, x}, got.ExDate)
}

func TestDetach_NotLinked(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)

	id := insert(t, store, storage.NewMockJournal(0, "plain", "plain", 1622541600000, ""))
	detached, err := m.Detach(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, detached)

	got, _ := store.GetEntryByID(context.Background(), id)
	assert.Zero(t, got.Sequence)
}

func TestUpdateOriginal(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	original := storage.NewMockJournal(0, "orig", "daily", 1622541600000, "")
	original.RRule = "FREQ=DAILY;COUNT=3"
	id := insert(t, store, original)
	_, err := m.Regenerate(ctx, id)
	require.NoError(t, err)

	edited, _ := store.GetEntryByID(ctx, id)
	edited.RRule = "FREQ=DAILY;COUNT=5"
	result, err := m.UpdateOriginal(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Created)
	assert.False(t, result.Detached)

	got, _ := store.GetEntryByID(ctx, id)
	assert.Equal(t, int64(1), got.Sequence)
	assert.True(t, got.Dirty)
	assert.Len(t, instancesOf(store, id), 4)
	assert.Equal(t, "FREQ=DAILY;COUNT=3", original.RRule, "caller's entry must not be touched")
}

func TestUpdateInstance(t *testing.T) {
	store := memory.New()
	m := newTestManager(store)
	ctx := context.Background()

	original := storage.NewMockTodo(0, "orig", "daily", 1622541600000, 1622541600000+day, "")
	original.RRule = "FREQ=DAILY;COUNT=3"
	id := insert(t, store, original)
	_, err := m.Regenerate(ctx, id)
	require.NoError(t, err)

	instance := instancesOf(store, id)[0]
	percent := 100
	instance.PercentComplete = &percent
	instance.Status = "COMPLETED"

	result, err := m.UpdateInstance(ctx, instance)
	require.NoError(t, err)
	assert.True(t, result.Detached)

	got, _ := store.GetEntryByID(ctx, instance.ID)
	assert.False(t, got.IsLinkedRecurringInstance)
	assert.Equal(t, "COMPLETED", got.Status)
	assert.Equal(t, 100, *got.PercentComplete)
	assert.Equal(t, int64(2), got.Sequence)
	assert.Equal(t, id, *got.RecurOriginalID)

	gotOriginal, _ := store.GetEntryByID(ctx, id)
	assert.Equal(t, []int64{*instance.Dtstart}, gotOriginal.ExDate)

	// editing it again does not detach twice
	got.Summary = "renamed"
	result, err = m.UpdateInstance(ctx, got)
	require.NoError(t, err)
	assert.False(t, result.Detached)
	gotOriginal, _ = store.GetEntryByID(ctx, id)
	assert.Len(t, gotOriginal.ExDate, 1)
}

func TestExpandLogsButSwallowsFailures(t *testing.T) {
	m := newTestManager(memory.New())

	bad := storage.NewMockJournal(1, "bad", "bad", 1622541600000, "")
	bad.RRule = "FREQ=HOURLY;COUNT=2"
	assert.Equal(t, []int64{}, m.Expand(bad))

	good := storage.NewMockJournal(1, "good", "good", 1622541600000, recurrence.TZAllDay)
	good.RRule = "FREQ=DAILY;COUNT=2"
	assert.Equal(t, []int64{1622541600000, 1622541600000 + day}, m.Expand(good))
}
