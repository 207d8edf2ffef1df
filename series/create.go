package series

import (
	"context"
	"fmt"

	"github.com/cyp0633/libjtx/storage"
)

// Create stores a new entry together with its sub-properties and, when the entry is
// a recurring original, materializes its instances. It returns the new id and the
// number of instances created.
func (m *Manager) Create(ctx context.Context, entry *storage.Entry, subs *storage.SubProperties) (int64, int, error) {
	id, err := m.gw.InsertEntry(ctx, entry)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert entry %q: %w", entry.UID, err)
	}

	if subs != nil {
		if err := m.insertSubProperties(ctx, subs.Reparent(id)); err != nil {
			return id, 0, fmt.Errorf("failed to store sub-properties of %d: %w", id, err)
		}
	}

	if entry.IsInstance() || !entry.IsRecurring() {
		return id, 0, nil
	}

	created, err := m.Regenerate(ctx, id)
	return id, created, err
}
