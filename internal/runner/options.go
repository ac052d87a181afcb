package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Requester abstracts executing a single iteration.
// Implementations should return an error for failed iterations.
type Requester interface {
	Do(ctx context.Context) error
}

// Options configure the Runner.
type Options struct {
	VUs            int                         // number of virtual users
	Duration       time.Duration               // no new iterations start after this (0 means until ctx ends)
	GracefulStop   time.Duration               // how long in-flight iterations may finish after Duration
	RatePerSecond  int                         // global iteration start cap across VUs (0 means unlimited)
	Requester      Requester                   // iteration executor (required)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.VUs <= 0 {
		o.VUs = 1
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.GracefulStop < 0 {
		o.GracefulStop = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
