package series

import (
	"context"
	"fmt"

	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/storage"
)

// Regenerate replaces the linked instances of the original with id originalID by a
// fresh materialization of its expansion and returns how many instances it created.
//
// Detached instances are kept. The occurrence at the original's own start is never
// materialized. A persistence failure stops the pass; instances inserted before the
// failure stay in place.
func (m *Manager) Regenerate(ctx context.Context, originalID int64) (int, error) {
	original, err := m.gw.GetEntryByID(ctx, originalID)
	if err != nil {
		return 0, fmt.Errorf("failed to load original %d: %w", originalID, err)
	}

	removed, err := m.gw.DeleteGeneratedInstances(ctx, originalID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete instances of %d: %w", originalID, err)
	}
	m.logger.Debug("removed linked instances", "original_id", originalID, "count", removed)

	start, ok := original.Start().Get()
	if !ok {
		return 0, nil
	}

	var timeToDue int64
	if due, ok := original.DueAt().Get(); ok && original.Kind == storage.KindTodo {
		timeToDue = due - start
	}

	occurrences := m.Expand(original)
	if len(occurrences) == 0 {
		return 0, nil
	}

	subs, err := m.gw.GetSubProperties(ctx, originalID)
	if err != nil {
		return 0, fmt.Errorf("failed to load sub-properties of %d: %w", originalID, err)
	}

	created := 0
	for _, occurrence := range occurrences {
		if occurrence == start {
			continue
		}

		instance := newInstance(original, occurrence, timeToDue, m.nowMillis(), m.newUID())
		id, err := m.gw.InsertEntry(ctx, instance)
		if err != nil {
			return created, fmt.Errorf("failed to insert instance of %d at %d: %w", originalID, occurrence, err)
		}
		if err := m.insertSubProperties(ctx, subs.Reparent(id)); err != nil {
			return created, fmt.Errorf("failed to copy sub-properties to instance %d: %w", id, err)
		}
		created++
	}

	m.logger.Info("regenerated recurring instances",
		"original_id", originalID,
		"removed", removed,
		"created", created)

	return created, nil
}

// newInstance builds the linked instance of original for one occurrence. Relations
// are not carried over.
func newInstance(original *storage.Entry, occurrence, timeToDue, now int64, uid string) *storage.Entry {
	originalID := original.ID
	start := occurrence

	var due *int64
	if original.Kind == storage.KindTodo && original.Due != nil {
		d := occurrence + timeToDue
		due = &d
	}

	var percent *int
	if original.PercentComplete != nil {
		p := *original.PercentComplete
		percent = &p
	}

	return &storage.Entry{
		UID:        uid,
		Kind:       original.Kind,
		Collection: original.Collection,

		Summary:         original.Summary,
		Description:     original.Description,
		Status:          original.Status,
		PercentComplete: percent,

		Dtstart:         &start,
		DtstartTimezone: original.DtstartTimezone,
		Due:             due,
		DueTimezone:     original.DueTimezone,

		RecurID:                   recurrence.RecurID(occurrence, original.DtstartTimezone),
		RecurOriginalID:           &originalID,
		IsLinkedRecurringInstance: true,

		Dtstamp:      now,
		Created:      now,
		LastModified: now,
	}
}

// insertSubProperties persists every item of subs as a fresh row.
func (m *Manager) insertSubProperties(ctx context.Context, subs *storage.SubProperties) error {
	for i := range subs.Categories {
		if _, err := m.gw.InsertCategory(ctx, &subs.Categories[i]); err != nil {
			return err
		}
	}
	for i := range subs.Comments {
		if _, err := m.gw.InsertComment(ctx, &subs.Comments[i]); err != nil {
			return err
		}
	}
	for i := range subs.Attachments {
		if _, err := m.gw.InsertAttachment(ctx, &subs.Attachments[i]); err != nil {
			return err
		}
	}
	if subs.Organizer != nil {
		if _, err := m.gw.InsertOrganizer(ctx, subs.Organizer); err != nil {
			return err
		}
	}
	for i := range subs.Attendees {
		if _, err := m.gw.InsertAttendee(ctx, &subs.Attendees[i]); err != nil {
			return err
		}
	}
	for i := range subs.Resources {
		if _, err := m.gw.InsertResource(ctx, &subs.Resources[i]); err != nil {
			return err
		}
	}
	return nil
}
