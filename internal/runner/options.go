package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/cadence/internal/pacer"
)

// Iterator runs one paced iteration. *pacer.Pacer satisfies it.
type Iterator interface {
	RunIteration(ctx context.Context, cfg pacer.IterationConfig) (pacer.IterationResult, error)
}

// Recorder receives every iteration result, including partial ones.
// *metrics.Collector satisfies it.
type Recorder interface {
	RecordIteration(res pacer.IterationResult)
}

// Options configure the Runner.
type Options struct {
	VUs          int                   // number of virtual users
	Iterations   int                   // iterations per VU (0 means until Duration)
	Duration     time.Duration         // no iteration starts after Duration (0 means no cap)
	GracefulStop time.Duration         // time an iteration started before Duration may keep running (default: budget)
	StartRate    float64               // VU starts per second (0 starts every VU at once)
	Iterator     Iterator              // iteration executor (required)
	Iteration    pacer.IterationConfig // burst shape shared by all VUs

	// NewBuilder, when set, replaces Iteration.Build with a builder bound to
	// the VU's context.
	NewBuilder func(ctx context.Context) pacer.RequestBuilder

	Recorder    Recorder
	OnIteration func(vu, iteration int, res pacer.IterationResult)

	LimiterFactory func(startsPerSecond float64) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.VUs <= 0 {
		o.VUs = 1
	}
	if o.Iterations < 0 {
		o.Iterations = 0
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.Iterations == 0 && o.Duration == 0 {
		o.Iterations = 1
	}
	if o.GracefulStop <= 0 {
		o.GracefulStop = o.Iteration.Budget
	}
	if o.StartRate < 0 {
		o.StartRate = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(startsPerSecond float64) *rate.Limiter {
			if startsPerSecond <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(startsPerSecond), 1)
		}
	}
}
