package gallery

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// deleteBlobsParallel removes a set of blobs with bounded concurrency.
// Individual failures are logged by deleteBlobs and do not stop the others.
func (m *Manager) deleteBlobsParallel(ctx context.Context, paths map[string]struct{}) {
	var g errgroup.Group
	g.SetLimit(m.opts.CleanupConcurrency)
	for p := range paths {
		g.Go(func() error {
			m.deleteBlobs(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
}
