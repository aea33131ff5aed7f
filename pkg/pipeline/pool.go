package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for every index in [0, n) on at most threads workers.
// Workers pick the next index as they finish, so uneven tasks balance out.
// The first error cancels the remaining work and is returned. worker is in
// [0, min(threads, n)) and lets fn write per-worker accumulators without
// locking.
func forEach(ctx context.Context, threads, n int, fn func(ctx context.Context, worker, i int) error) error {
	if n == 0 {
		return nil
	}

	var next atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers(threads, n); w++ {
		g.Go(func() error {
			for {
				if err := gCtx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= n {
					return nil
				}
				if err := fn(gCtx, w, i); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}

// workers returns the accumulator count forEach needs for n tasks.
func workers(threads, n int) int {
	return max(1, min(threads, n))
}
