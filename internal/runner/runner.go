package runner

import (
	"context"
	"log"
	"sync/atomic"
)

// Job is one asynchronous unit of work. The returned value is handed
// back to the submitter; the error is logged and swallowed.
type Job func(ctx context.Context) (any, error)

// Runner executes jobs with a hard cap on how many run at once.
// Admission is first-come first-served through a semaphore channel;
// there is no strict fairness guarantee and no completion ordering.
type Runner struct {
	sem    chan struct{}
	active atomic.Int64
}

func New(limit int) *Runner {
	if limit < 1 {
		limit = 1
	}
	return &Runner{sem: make(chan struct{}, limit)}
}

// Do blocks until a slot is free, runs the job, and returns its
// result. A failed job yields nil instead of an error so one bad job
// can never break a caller's scheduling loop. If ctx is cancelled
// while waiting for a slot the job is never started and Do returns
// nil.
func (r *Runner) Do(ctx context.Context, job Job) any {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil
	}

	r.active.Add(1)
	defer func() {
		r.active.Add(-1)
		<-r.sem
	}()

	v, err := job(ctx)
	if err != nil {
		log.Printf("[runner] job failed: %v", err)
		return nil
	}
	return v
}

// Active reports how many jobs are executing right now.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Limit reports the admission cap.
func (r *Runner) Limit() int {
	return cap(r.sem)
}
