package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/cadence/internal/config"
	"github.com/torosent/cadence/internal/feeder"
	"github.com/torosent/cadence/internal/history"
	"github.com/torosent/cadence/internal/httpclient"
	"github.com/torosent/cadence/internal/logging"
	"github.com/torosent/cadence/internal/metrics"
	"github.com/torosent/cadence/internal/output"
	"github.com/torosent/cadence/internal/pacer"
	"github.com/torosent/cadence/internal/payload"
	"github.com/torosent/cadence/internal/runner"
	"github.com/torosent/cadence/internal/threshold"
	"github.com/torosent/cadence/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

var (
	errThresholdsFailed = errors.New("thresholds failed")
	errRequestsFailed   = errors.New("requests failed")
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "history" {
		cmd := newHistoryCommand(stdout)
		cmd.SetErr(stderr)
		cmd.SetArgs(args[1:])
		return cmd.ExecuteContext(ctx)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	runID := history.NewRunID()
	logger = logger.With().Str("run_id", runID).Logger()

	provider, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	builder, err := newRequestBuilder(cfg, logger)
	if err != nil {
		return err
	}

	transport := httpclient.NewTransport(
		httpclient.NewClient(cfg.Timeout),
		httpclient.WithTracer(provider.Tracer(), provider.ShouldPropagate()),
		httpclient.WithCorrelationHeader(cfg.CorrelationHeader),
	)
	p := pacer.New(transport,
		pacer.WithWarningSink(logging.Sink{Logger: logger}),
		pacer.WithTracer(provider.Tracer()),
	)

	collector := metrics.NewCollector(cfg.ExpectedStatus)
	observe := newObserver(cfg, logger, collector, stderr)

	logger.Info().
		Str("target", builder.URL()).
		Str("method", builder.Method()).
		Str("scenario", string(cfg.Scenario)).
		Int("burst_size", cfg.BurstSize).
		Dur("budget", cfg.Budget).
		Int("vus", cfg.VUs).
		Int("iterations", cfg.Iterations).
		Dur("duration", cfg.Duration).
		Msg("starting run")

	r := runner.New(runner.Options{
		VUs:        cfg.VUs,
		Iterations: cfg.Iterations,
		Duration:   cfg.Duration,
		StartRate:  cfg.StartRate,
		Iterator:   p,
		Iteration: pacer.IterationConfig{
			TargetURL:      builder.URL(),
			BurstSize:      cfg.BurstSize,
			Budget:         cfg.Budget,
			ExpectedStatus: cfg.ExpectedStatus,
		},
		NewBuilder:  builder.Func,
		Recorder:    collector,
		OnIteration: observe.iteration,
	})

	observe.start()
	result, runErr := r.Run(ctx)
	observe.stop()

	if errors.Is(runErr, pacer.ErrInvalidConfig) {
		return runErr
	}
	if runErr != nil {
		logger.Warn().Err(runErr).Msg("run interrupted, reporting partial results")
	}

	stats := collector.Stats(result.Duration)
	results := threshold.NewEvaluator(thresholds).Evaluate(stats)
	passed := threshold.Passed(results) && (cfg.AllowFailures || stats.Failures == 0)

	report := output.Report{
		RunID:      runID,
		Target:     builder.URL(),
		Scenario:   string(cfg.Scenario),
		BurstSize:  cfg.BurstSize,
		Budget:     cfg.Budget,
		VUs:        cfg.VUs,
		Stats:      stats,
		Thresholds: output.NewThresholdResults(results),
		Passed:     passed,
	}
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, report)
	}

	if cfg.HistoryFile != "" {
		if _, err := history.Append(cfg.HistoryFile, historyEntry(report, result)); err != nil {
			logger.Error().Err(err).Str("path", cfg.HistoryFile).Msg("failed to record run history")
		}
	}

	if runErr != nil {
		return runErr
	}
	if !threshold.Passed(results) {
		return errThresholdsFailed
	}
	if stats.Failures > 0 && !cfg.AllowFailures {
		return fmt.Errorf("%w: %d of %d", errRequestsFailed, stats.Failures, stats.Total)
	}
	return nil
}

func newRequestBuilder(cfg *config.Config, logger zerolog.Logger) (*httpclient.RequestBuilder, error) {
	var opts []httpclient.BuilderOption
	if cfg.EntitiesFile != "" {
		entities, err := payload.LoadEntities(cfg.EntitiesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpclient.WithEntities(entities))
	}
	if cfg.Feeder.Path != "" {
		f, err := feeder.Open(cfg.Feeder.Path, feeder.Kind(cfg.Feeder.Type), cfg.Feeder.Rewind)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("path", cfg.Feeder.Path).Int("records", f.Len()).Bool("rewind", cfg.Feeder.Rewind).Msg("feeder loaded")
		opts = append(opts, httpclient.WithFeeder(f))
	}
	return httpclient.NewRequestBuilder(cfg, opts...)
}

func historyEntry(r output.Report, res runner.Result) history.Entry {
	return history.Entry{
		ID:        r.RunID,
		Target:    r.Target,
		Scenario:  r.Scenario,
		BurstSize: r.BurstSize,
		BudgetSec: r.Budget.Seconds(),
		VUs:       r.VUs,
		Summary: history.Summary{
			Iterations:    res.Iterations,
			Overruns:      res.Overruns,
			TotalRequests: r.Stats.Total,
			Success:       r.Stats.Successes,
			Fail:          r.Stats.Failures,
			AvgLatencyMs:  r.Stats.Latency.MeanMs,
			P95LatencyMs:  r.Stats.Latency.P95Ms,
			P99LatencyMs:  r.Stats.Latency.P99Ms,
			DurationMs:    r.Stats.DurationMs,
		},
		Passed: r.Passed,
	}
}

// observer fans iteration results out to the failure log and progress display.
type observer struct {
	failures *logging.FailureLogger
	bar      *output.IterationBar
	ticker   *output.ProgressReporter
	newBar   func() *output.IterationBar
	w        io.Writer
}

// newObserver picks an iteration bar when the run has a known number of
// iterations and a ticking summary line for duration-bound runs.
func newObserver(cfg *config.Config, logger zerolog.Logger, collector *metrics.Collector, w io.Writer) *observer {
	o := &observer{w: w}
	if cfg.LogFailures {
		o.failures = logging.NewFailureLogger(logger)
	}
	if !cfg.Progress || cfg.JSONOutput {
		return o
	}
	if cfg.Iterations > 0 {
		total := int64(cfg.Iterations) * int64(cfg.VUs)
		o.newBar = func() *output.IterationBar { return output.NewIterationBar(w, total) }
	} else {
		o.ticker = output.NewProgressReporter(collector, progressInterval, w)
	}
	return o
}

func (o *observer) start() {
	if o.newBar != nil {
		o.bar = o.newBar()
	}
	if o.ticker != nil {
		o.ticker.Start()
	}
}

func (o *observer) iteration(vu, iteration int, res pacer.IterationResult) {
	if o.failures != nil {
		o.failures.LogIteration(vu, iteration, res)
	}
	if o.bar != nil {
		o.bar.Increment()
	}
}

func (o *observer) stop() {
	if o.bar != nil {
		o.bar.Wait()
	}
	if o.ticker != nil {
		o.ticker.Stop()
		fmt.Fprintln(o.w)
	}
}
