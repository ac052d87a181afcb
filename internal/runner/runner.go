package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Result captures execution summary.
type Result struct {
	Iterations  int64 // iterations that ran to completion, failed or not
	Failures    int64 // completed iterations that returned an error
	Interrupted int64 // iterations cut short by the end of the run
	Duration    time.Duration
}

// Runner runs a fixed pool of virtual users, each calling the Requester in a
// loop until the run ends.
type Runner struct {
	opt    Options
	active int64
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// ActiveVUs returns the number of virtual users still looping.
func (r *Runner) ActiveVUs() int {
	return int(atomic.LoadInt64(&r.active))
}

// Run blocks until every virtual user has stopped. Once Duration elapses no
// new iteration starts; iterations still in flight get GracefulStop to finish
// before their context is cancelled. Cancelling ctx stops everything at once.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	var iterations, failures, interrupted int64

	stopCtx, stopCancel := context.WithCancel(ctx)
	defer stopCancel()
	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(stopCtx, r.opt.Duration)
		stopCtx = deadlineCtx
		defer deadlineCancel()
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		select {
		case <-stopCtx.Done():
		case <-runCtx.Done():
			return
		}
		if r.opt.GracefulStop > 0 {
			timer := time.NewTimer(r.opt.GracefulStop)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-runCtx.Done():
			}
		}
		runCancel()
	}()

	limiter := r.opt.LimiterFactory(r.opt.RatePerSecond)

	var wg sync.WaitGroup
	wg.Add(r.opt.VUs)
	atomic.StoreInt64(&r.active, int64(r.opt.VUs))
	for i := 0; i < r.opt.VUs; i++ {
		go func() {
			defer wg.Done()
			defer atomic.AddInt64(&r.active, -1)
			for {
				if stopCtx.Err() != nil {
					return
				}
				if r.opt.RatePerSecond > 0 {
					if err := limiter.Wait(stopCtx); err != nil {
						return
					}
				}
				if r.opt.Requester == nil {
					return
				}
				err := r.opt.Requester.Do(runCtx)
				switch {
				case err == nil:
					atomic.AddInt64(&iterations, 1)
				case runCtx.Err() != nil && isContextErr(err):
					atomic.AddInt64(&interrupted, 1)
				default:
					atomic.AddInt64(&iterations, 1)
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}
	wg.Wait()

	return Result{
		Iterations:  atomic.LoadInt64(&iterations),
		Failures:    atomic.LoadInt64(&failures),
		Interrupted: atomic.LoadInt64(&interrupted),
		Duration:    time.Since(start),
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
