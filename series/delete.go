package series

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyp0633/libjtx/storage"
)

// DeleteWithChildren deletes id and, before it, every entry reachable through
// CHILD relations, children first. The generated instances of each visited entry
// are removed physically. A linked instance is detached and then removed; an
// entry of a local collection is removed; anything else is soft-deleted so the
// sync layer can propagate the deletion. Id 0 denotes an unsaved entry and is a no-op.
func (m *Manager) DeleteWithChildren(ctx context.Context, id int64) error {
	return m.deleteTree(ctx, id, make(map[int64]bool))
}

func (m *Manager) deleteTree(ctx context.Context, id int64, visited map[int64]bool) error {
	if id == 0 || visited[id] {
		return nil
	}
	visited[id] = true

	children, err := m.gw.GetChildIDs(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list children of %d: %w", id, err)
	}
	for _, child := range children {
		if err := m.deleteTree(ctx, child, visited); err != nil {
			return err
		}
	}

	if _, err := m.gw.DeleteGeneratedInstances(ctx, id); err != nil {
		return fmt.Errorf("failed to delete instances of %d: %w", id, err)
	}

	entry, err := m.gw.GetEntryByID(ctx, id)
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load entry %d: %w", id, err)
	}

	if entry.IsLinkedRecurringInstance {
		if _, err := m.Detach(ctx, id); err != nil {
			return err
		}
		return m.deletePhysically(ctx, id)
	}

	local, err := m.isLocal(ctx, entry.Collection)
	if err != nil {
		return err
	}
	if local {
		return m.deletePhysically(ctx, id)
	}

	if err := m.gw.SoftDeleteEntry(ctx, id, m.nowMillis()); err != nil {
		return fmt.Errorf("failed to mark entry %d deleted: %w", id, err)
	}
	m.logger.Debug("entry marked deleted", "entry_id", id)
	return nil
}

func (m *Manager) deletePhysically(ctx context.Context, id int64) error {
	if err := m.gw.DeleteEntryByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", id, err)
	}
	m.logger.Debug("entry deleted", "entry_id", id)
	return nil
}

// isLocal reports whether collectionID names a collection that is never synced.
// Entries without a known collection are treated as synced.
func (m *Manager) isLocal(ctx context.Context, collectionID int64) (bool, error) {
	if collectionID == 0 {
		return false, nil
	}
	collection, err := m.gw.GetCollection(ctx, collectionID)
	if storage.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load collection %d: %w", collectionID, err)
	}
	return collection.Local, nil
}

// SweepOrphans removes instances whose original is gone or no longer recurs.
// It is best effort: failures are collected and the sweep carries on.
func (m *Manager) SweepOrphans(ctx context.Context) (int, error) {
	ids, err := m.gw.ListOrphanInstanceIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list orphan instances: %w", err)
	}

	var errs []error
	removed := 0
	for _, id := range ids {
		if err := m.gw.DeleteEntryByID(ctx, id); err != nil {
			m.logger.Warn("failed to remove orphan instance", "entry_id", id, "error", err)
			errs = append(errs, fmt.Errorf("entry %d: %w", id, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("removed orphan instances", "count", removed)
	}
	return removed, errors.Join(errs...)
}
