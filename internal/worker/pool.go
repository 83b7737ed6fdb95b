// Package worker fans independent jobs out over a bounded number of
// goroutines. Corpus ingestion reads files through it and the reassembler
// merges one pipeline stage per job.
package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Result pairs a processed value with its original index to preserve ordering.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool runs fn over items with at most concurrency jobs in flight and
// returns results in input order.
type Pool[I, O any] struct {
	concurrency int
}

// NewPool creates a worker pool with the given concurrency.
// If concurrency <= 0, defaults to runtime.NumCPU().
func NewPool[I, O any](concurrency int) *Pool[I, O] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[I, O]{concurrency: concurrency}
}

// Process applies fn to every item. Errors are captured per result rather
// than aborting the batch; items not yet started when ctx is done get
// ctx.Err().
func (p *Pool[I, O]) Process(ctx context.Context, items []I, fn func(context.Context, I) (O, error)) []Result[O] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[O], len(items))
	var g errgroup.Group
	g.SetLimit(min(p.concurrency, len(items)))

	for i, item := range items {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Value, results[i].Err = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // jobs report through results

	return results
}

// FirstError returns the first per-item error in index order, or nil.
func FirstError[T any](results []Result[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
