package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/torosent/cadence/internal/pacer"
)

// ErrNoIterator is returned by Run when Options.Iterator is nil.
var ErrNoIterator = errors.New("runner: iterator is required")

// Result captures execution summary.
type Result struct {
	Iterations int64
	Overruns   int64
	Requests   int64
	Failures   int64
	Duration   time.Duration
}

// Runner drives virtual users, each looping paced iterations.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, limiter: opt.LimiterFactory(opt.StartRate)}
}

type counters struct {
	iterations int64
	overruns   int64
	requests   int64
	failures   int64
}

// Run blocks until every VU finished its iterations, Duration elapsed, or
// ctx was cancelled. The returned Result covers everything recorded so far,
// including partial iterations. Cancellation of ctx is reported as ctx.Err();
// reaching Duration is not an error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	if r.opt.Iterator == nil {
		return Result{}, ErrNoIterator
	}

	var c counters
	g, gctx := errgroup.WithContext(ctx)

	var deadline time.Time
	if r.opt.Duration > 0 {
		deadline = start.Add(r.opt.Duration)
	}

	for vu := 0; vu < r.opt.VUs; vu++ {
		g.Go(func() error {
			return r.runVU(gctx, vu, deadline, &c)
		})
	}
	err := g.Wait()

	res := Result{
		Iterations: atomic.LoadInt64(&c.iterations),
		Overruns:   atomic.LoadInt64(&c.overruns),
		Requests:   atomic.LoadInt64(&c.requests),
		Failures:   atomic.LoadInt64(&c.failures),
		Duration:   time.Since(start),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	return res, err
}

func (r *Runner) runVU(ctx context.Context, vu int, deadline time.Time, c *counters) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil
	}

	runCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, deadline.Add(r.opt.GracefulStop))
		defer cancel()
	}

	cfg := r.opt.Iteration
	if r.opt.NewBuilder != nil {
		cfg.Build = r.opt.NewBuilder(runCtx)
	}

	for i := 0; r.opt.Iterations == 0 || i < r.opt.Iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil
		}

		res, err := r.opt.Iterator.RunIteration(runCtx, cfg)
		var cfgErr *pacer.ConfigError
		if errors.As(err, &cfgErr) {
			return err
		}
		r.record(vu, i, res, c)
		if err != nil {
			// Either ctx was cancelled or the graceful stop expired.
			return nil
		}
	}
	return nil
}

func (r *Runner) record(vu, iteration int, res pacer.IterationResult, c *counters) {
	atomic.AddInt64(&c.iterations, 1)
	if res.Overrun {
		atomic.AddInt64(&c.overruns, 1)
	}
	atomic.AddInt64(&c.requests, int64(len(res.Outcomes)))
	atomic.AddInt64(&c.failures, int64(res.FailureCount()))

	if r.opt.Recorder != nil {
		r.opt.Recorder.RecordIteration(res)
	}
	if r.opt.OnIteration != nil {
		r.opt.OnIteration(vu, iteration, res)
	}
}
