// Package pool runs independent per-file tasks on a bounded number of
// workers.
//
// Cancellation belongs to the coordinator alone: tasks never see the
// context. When the context is cancelled the coordinator stops handing out
// work, waits for the tasks already running, and returns an
// OPERATION_CANCELLED error. That is the only shutdown path.
package pool

import (
	"context"
	"sync/atomic"

	lerrors "lvcs/internal/errors"
	"lvcs/internal/progress"

	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

type Pool struct {
	workers int
}

func New(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{workers: workers}
}

func (p *Pool) Workers() int {
	return p.workers
}

// Map runs task over items and returns the results in item order. The first
// task failure stops dispatch and is returned once every running task has
// finished. bar may be nil.
func Map[T, R any](ctx context.Context, p *Pool, items []T, task func(T) (R, error), bar progress.Bar) ([]R, error) {
	results := make([]R, len(items))

	var g errgroup.Group
	g.SetLimit(p.workers)

	var failed atomic.Bool
	var cancelled error

dispatch:
	for i, item := range items {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break dispatch
		default:
		}
		if failed.Load() {
			break
		}

		i, item := i, item
		g.Go(func() error {
			r, err := task(item)
			if err != nil {
				failed.Store(true)
				return err
			}
			results[i] = r
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}

	err := g.Wait()
	if bar != nil {
		bar.Finish()
	}

	if cancelled == nil {
		cancelled = ctx.Err()
	}
	if cancelled != nil {
		return nil, lerrors.Cancelled(cancelled)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Each is Map for tasks without a result.
func Each[T any](ctx context.Context, p *Pool, items []T, task func(T) error, bar progress.Bar) error {
	_, err := Map(ctx, p, items, func(item T) (struct{}, error) {
		return struct{}{}, task(item)
	}, bar)
	return err
}
