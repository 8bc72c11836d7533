package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Chunk splits items into at most parts contiguous, non-overlapping groups of
// near-equal size, preserving order. Empty groups are never returned.
func Chunk[T any](items []T, parts int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > len(items) {
		parts = len(items)
	}

	out := make([][]T, 0, parts)
	size, rest := len(items)/parts, len(items)%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rest {
			end++
		}
		out = append(out, items[start:end:end])
		start = end
	}
	return out
}

// ForEach runs action for every item with at most limit goroutines in flight.
// The first error cancels the context passed to actions that have not started
// and is returned once all running actions finish.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return action(ctx, item)
		})
	}
	return g.Wait()
}
