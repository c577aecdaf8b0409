// Package workerpool provides the bounded-concurrency primitive both
// retrievers drive their batch downloads with. It exposes explicit
// submit/collect semantics (Run takes the whole item list and blocks
// until done) rather than an implicit callback chain, which is what
// makes cancellation on the first unrecoverable error deterministic:
// golang.org/x/sync/errgroup's WithContext cancels every in-flight
// goroutine's context as soon as one Go func returns a non-nil error.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
)

// Item is one unit of work: a closure that performs the work. Its
// position in the slice passed to Run is the position of its Result.
type Item[T any] struct {
	Run func(ctx context.Context) (T, error)
}

// Result is a work item's outcome, stored at the item's own index in
// the slice Run returns.
type Result[T any] struct {
	Value T
	Err   error
}

// Run drives items with at most maxWorkers concurrent goroutines.
// Results mirror the input order regardless of completion order. A
// NotFound error from an item is recorded in that item's Result and
// does not cancel its peers; any other error cancels the pool (peers
// already running finish or observe ctx.Done, new work is not
// started) and is returned as the batch's error, alongside whatever
// per-item results were already produced.
//
// File-system writes in different workers touch disjoint destination
// paths by construction (each item carries its own local path via its
// closure), so no cross-worker locking is needed here.
func Run[T any](ctx context.Context, maxWorkers int, items []Item[T]) ([]Result[T], error) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	results := make([]Result[T], len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result[T]{Err: err}
				return err
			}
			val, err := items[i].Run(gctx)
			results[i] = Result[T]{Value: val, Err: err}
			if err != nil && !mirrorerrors.IsNotFound(err) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
