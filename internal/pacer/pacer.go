package pacer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Transport issues a single request and reports the response status code.
// A non-nil error means no response was received.
type Transport interface {
	Do(ctx context.Context, req Request) (int, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (int, error)

func (f TransportFunc) Do(ctx context.Context, req Request) (int, error) {
	return f(ctx, req)
}

// WarningSink receives human-readable overrun warnings.
type WarningSink interface {
	Warn(message string)
}

// Clock supplies time to the pacer. Sleep must return ctx.Err() when ctx is
// cancelled before d elapses.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type discardSink struct{}

func (discardSink) Warn(string) {}

// Option configures a Pacer.
type Option func(*Pacer)

// WithWarningSink routes overrun warnings to sink.
func WithWarningSink(sink WarningSink) Option {
	return func(p *Pacer) {
		if sink != nil {
			p.sink = sink
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(p *Pacer) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithTracer records one span per iteration with tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pacer) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// Pacer executes paced iterations against a Transport.
type Pacer struct {
	transport Transport
	sink      WarningSink
	clock     Clock
	tracer    trace.Tracer
}

// New returns a Pacer that sends requests through transport.
func New(transport Transport, opts ...Option) *Pacer {
	p := &Pacer{
		transport: transport,
		sink:      discardSink{},
		clock:     systemClock{},
		tracer:    noop.NewTracerProvider().Tracer("cadence"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunIteration sends one burst described by cfg and paces it to cfg.Budget.
//
// The returned result always holds BurstSize outcomes unless an error is
// returned. A *ConfigError is returned before any request when cfg is invalid;
// ctx.Err() is returned together with the partial result when ctx is cancelled
// mid-burst or during the pacing sleep.
func (p *Pacer) RunIteration(ctx context.Context, cfg IterationConfig) (IterationResult, error) {
	if err := cfg.Validate(); err != nil {
		return IterationResult{}, err
	}
	if p.transport == nil {
		return IterationResult{}, &ConfigError{issues: []string{"transport is required"}}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := p.tracer.Start(ctx, "iteration", trace.WithAttributes(
		attribute.Int("cadence.burst_size", cfg.BurstSize),
		attribute.Float64("cadence.budget_s", cfg.BudgetSeconds()),
	))
	res, err := p.runIteration(ctx, cfg)
	span.SetAttributes(
		attribute.Int("cadence.successes", res.SuccessCount()),
		attribute.Bool("cadence.overrun", res.Overrun),
		attribute.Float64("cadence.slept_s", res.SleptSeconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	return res, err
}

func (p *Pacer) runIteration(ctx context.Context, cfg IterationConfig) (IterationResult, error) {
	res := IterationResult{Outcomes: make([]RequestOutcome, 0, cfg.BurstSize)}
	start := p.clock.Now()

	for i := 0; i < cfg.BurstSize; i++ {
		if err := ctx.Err(); err != nil {
			res.Elapsed = p.clock.Now().Sub(start)
			return res, err
		}
		res.Outcomes = append(res.Outcomes, p.send(ctx, cfg, i))
	}

	res.Elapsed = p.clock.Now().Sub(start)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if res.Elapsed < cfg.Budget {
		remainder := cfg.Budget - res.Elapsed
		if err := p.clock.Sleep(ctx, remainder); err != nil {
			return res, err
		}
		res.Slept = remainder
		return res, nil
	}

	res.Overrun = true
	p.sink.Warn(OverrunMessage(cfg.Budget))
	return res, nil
}

func (p *Pacer) send(ctx context.Context, cfg IterationConfig, index int) RequestOutcome {
	outcome := RequestOutcome{Index: index, StatusCode: StatusTransportFailure}
	begin := p.clock.Now()

	req, err := cfg.Build(index)
	if err != nil {
		outcome.Err = fmt.Errorf("build request %d: %w", index, err)
		outcome.Elapsed = p.clock.Now().Sub(begin)
		return outcome
	}
	req.Index = index
	if req.URL == "" {
		req.URL = cfg.TargetURL
	}

	status, err := p.transport.Do(ctx, req)
	outcome.Elapsed = p.clock.Now().Sub(begin)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.StatusCode = status
	outcome.Succeeded = cfg.succeeded(outcome)
	return outcome
}

// OverrunMessage renders the warning emitted when a burst exceeds budget.
// The wording is matched by existing log scrapers and must not change.
func OverrunMessage(budget time.Duration) string {
	seconds := strconv.FormatFloat(budget.Seconds(), 'f', -1, 64)
	return fmt.Sprintf("Timer exhausted! The execution time of the test took longer than %s seconds", seconds)
}
