// Package batch runs ordered fan-out work with a fixed number of workers.
package batch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Run applies worker to every item using at most concurrency goroutines and returns the
// results in input order. Each worker goroutine claims the next unprocessed index until
// none remain, so no index is processed twice.
//
// The first worker error cancels the context passed to the remaining workers and is
// returned; results of tasks still in flight are discarded. Workers that must not fail
// the batch should absorb their own errors, for example with WithTimeout.
func Run[T, R any](ctx context.Context, items []T, concurrency int, worker func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	workers := min(max(concurrency, 1), len(items))
	var next atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= len(items) {
					return nil
				}
				r, err := worker(gctx, items[i], i)
				if err != nil {
					return err
				}
				results[i] = r
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
