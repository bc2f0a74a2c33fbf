package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerFn handles the task at index. A non-nil error cancels the shared
// context and is returned by Each.
type WorkerFn func(ctx context.Context, index int) error

// Each runs fn for every index in [0, tasks) with at most limit workers in
// flight. limit <= 0 means unbounded.
func Each(ctx context.Context, limit, tasks int, fn WorkerFn) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < tasks; i++ {
		g.Go(func() error {
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// All runs independent tasks concurrently and returns the first error.
func All(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	return Each(ctx, 0, len(tasks), func(ctx context.Context, i int) error {
		return tasks[i](ctx)
	})
}
