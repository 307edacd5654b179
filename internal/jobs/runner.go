package jobs

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Runner runs background work with at most N tasks executing at once. Go
// never blocks the caller; queued tasks wait for a slot in their own
// goroutine.
type Runner struct {
	ctx context.Context
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewRunner creates a Runner whose tasks receive ctx (or a context derived
// from it) and are cancelled with it.
func NewRunner(ctx context.Context, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		ctx: ctx,
		sem: semaphore.NewWeighted(int64(concurrency)),
	}
}

// Go schedules fn. If the runner's context ends before a slot frees up, fn
// is still called with the cancelled context so it can record the outcome.
// A panic in fn is recovered and passed to onPanic.
func (r *Runner) Go(fn func(ctx context.Context), onPanic func(recovered any)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.call(r.ctx, fn, onPanic)
			return
		}
		defer r.sem.Release(1)
		r.call(r.ctx, fn, onPanic)
	}()
}

func (r *Runner) call(ctx context.Context, fn func(ctx context.Context), onPanic func(any)) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("jobs: worker panicked", zap.String("panic", fmt.Sprint(rec)))
			if onPanic != nil {
				onPanic(rec)
			}
		}
	}()
	fn(ctx)
}

// Wait blocks until every scheduled task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
