package parallel

import (
	"context"
	"errors"
	"sync"
)

// DefaultMaxParallelism is used when callers pass a non-positive cap.
const DefaultMaxParallelism = 64

// RunBounded executes worker for each item with at most maxParallelism
// workers in flight. Items are submitted in slice order; completion order is
// unspecified. Once ctx is done no further items are submitted, already
// running workers finish, and ctx.Err() is included in the result.
// The returned error joins all worker errors.
func RunBounded[T any](ctx context.Context, items []T, maxParallelism int, worker func(ctx context.Context, item T) error) error {
	if len(items) == 0 {
		return nil
	}
	if maxParallelism <= 0 {
		maxParallelism = DefaultMaxParallelism
	}
	if maxParallelism > len(items) {
		maxParallelism = len(items)
	}

	sem := make(chan struct{}, maxParallelism)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

submit:
	for _, item := range items {
		select {
		case <-ctx.Done():
			break submit
		case sem <- struct{}{}:
		}
		// Acquiring the slot may race with cancellation; re-check so a done
		// context never starts new work.
		if ctx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := worker(ctx, item); err != nil {
				record(err)
			}
		}(item)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
