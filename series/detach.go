package series

import (
	"context"
	"fmt"

	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/storage"
)

// Detach turns the linked instance instanceID into a standalone exception: its
// start is appended to the original's exception dates (duplicates are kept) and
// its linked flag is cleared. It reports false without writing anything when the
// entry is not a linked instance.
func (m *Manager) Detach(ctx context.Context, instanceID int64) (bool, error) {
	instance, err := m.gw.GetEntryByID(ctx, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to load instance %d: %w", instanceID, err)
	}
	if !instance.IsLinkedRecurringInstance || instance.RecurOriginalID == nil {
		return false, nil
	}

	now := m.nowMillis()
	originalID := *instance.RecurOriginalID

	original, err := m.gw.GetEntryByID(ctx, originalID)
	switch {
	case storage.IsNotFound(err):
		m.logger.Warn("detaching instance of missing original",
			"instance_id", instanceID,
			"original_id", originalID)
	case err != nil:
		return false, fmt.Errorf("failed to load original %d: %w", originalID, err)
	default:
		if start, ok := instance.Start().Get(); ok {
			exdates := recurrence.AppendDate(recurrence.FormatDateList(original.ExDate), start)
			if err := m.gw.SetExceptionDates(ctx, originalID, exdates, now); err != nil {
				return false, fmt.Errorf("failed to update exception dates of %d: %w", originalID, err)
			}
		}
	}

	if err := m.gw.SetInstanceDetached(ctx, instanceID, now); err != nil {
		return false, fmt.Errorf("failed to detach instance %d: %w", instanceID, err)
	}

	m.logger.Info("instance detached from series",
		"instance_id", instanceID,
		"original_id", originalID)

	return true, nil
}

// UpdateResult describes the side effects of an update.
type UpdateResult struct {
	// Created is the number of instances regenerated after an original changed.
	Created int
	// Detached is set when an edited instance became a standalone exception,
	// so the caller can tell the user.
	Detached bool
}

// UpdateOriginal persists an edited original and regenerates its instances.
// The stored sequence is incremented and the entry marked dirty.
func (m *Manager) UpdateOriginal(ctx context.Context, entry *storage.Entry) (UpdateResult, error) {
	stored, err := m.gw.GetEntryByID(ctx, entry.ID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to load entry %d: %w", entry.ID, err)
	}

	updated := entry.Clone()
	updated.Sequence = stored.Sequence + 1
	updated.Dirty = true
	updated.LastModified = m.nowMillis()
	if err := m.gw.UpdateEntry(ctx, updated); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to update entry %d: %w", entry.ID, err)
	}

	created, err := m.Regenerate(ctx, entry.ID)
	return UpdateResult{Created: created}, err
}

// UpdateInstance persists a direct edit of an instance. A linked instance is
// detached first; the edit never re-links it.
func (m *Manager) UpdateInstance(ctx context.Context, entry *storage.Entry) (UpdateResult, error) {
	detached, err := m.Detach(ctx, entry.ID)
	if err != nil {
		return UpdateResult{}, err
	}

	stored, err := m.gw.GetEntryByID(ctx, entry.ID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to load entry %d: %w", entry.ID, err)
	}

	updated := entry.Clone()
	updated.RecurOriginalID = stored.RecurOriginalID
	updated.IsLinkedRecurringInstance = false
	updated.Sequence = stored.Sequence + 1
	updated.Dirty = true
	updated.LastModified = m.nowMillis()
	if err := m.gw.UpdateEntry(ctx, updated); err != nil {
		return UpdateResult{Detached: detached}, fmt.Errorf("failed to update entry %d: %w", entry.ID, err)
	}

	return UpdateResult{Detached: detached}, nil
}
