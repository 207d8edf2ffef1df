package series

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RegenerateAll regenerates every original in the store, several at a time.
// Each original is handled by exactly one goroutine. The first failure cancels
// originals that have not started yet and is returned with the number of
// instances created so far.
func (m *Manager) RegenerateAll(ctx context.Context) (int, error) {
	ids, err := m.gw.ListOriginalIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list originals: %w", err)
	}

	var created atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := m.Regenerate(ctx, id)
			created.Add(int64(n))
			return err
		})
	}
	err = g.Wait()

	m.logger.Info("regenerated all series",
		"originals", len(ids),
		"created", created.Load())

	return int(created.Load()), err
}
