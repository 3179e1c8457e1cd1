package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/cadence/internal/pacer"
)

// Collector aggregates request and iteration results in a thread-safe manner.
type Collector struct {
	mu sync.Mutex

	expectedStatus int

	reqHist      *hdrhistogram.Histogram
	requests     int64
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	statusCounts map[int]int64
	errorsByType map[string]int64
	checkPasses  int64

	iterHist     *hdrhistogram.Histogram
	iterations   int64
	overruns     int64
	minIteration time.Duration
	maxIteration time.Duration
	sumIteration time.Duration
	slept        time.Duration
}

// LatencyStats summarises a latency distribution.
type LatencyStats struct {
	Min  time.Duration `json:"-"`
	Max  time.Duration `json:"-"`
	Mean time.Duration `json:"-"`
	P50  time.Duration `json:"-"`
	P90  time.Duration `json:"-"`
	P95  time.Duration `json:"-"`
	P99  time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Check is a named pass/fail assertion evaluated on every request.
type Check struct {
	Name   string  `json:"name"`
	Passes int64   `json:"passes"`
	Fails  int64   `json:"fails"`
	Rate   float64 `json:"rate"`
}

// IterationStats describes the paced iterations of a run.
type IterationStats struct {
	Count       int64         `json:"count"`
	Overruns    int64         `json:"overruns"`
	OverrunRate float64       `json:"overrun_rate"`
	Slept       time.Duration `json:"-"`
	SleptMs     float64       `json:"slept_ms"`
	Duration    LatencyStats  `json:"duration"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64          `json:"total"`
	Successes      int64          `json:"successes"`
	Failures       int64          `json:"failures"`
	FailureRate    float64        `json:"failure_rate"`
	RequestsPerSec float64        `json:"requests_per_sec"`
	Latency        LatencyStats   `json:"latency"`
	StatusCodes    []StatusBucket `json:"status_codes,omitempty"`
	Errors         map[string]int `json:"errors,omitempty"`
	Checks         []Check        `json:"checks"`
	Iterations     IterationStats `json:"iterations"`
	Duration       time.Duration  `json:"-"`
	DurationMs     float64        `json:"duration_ms"`
}

// NewCollector returns a Collector whose status check expects expectedStatus.
// Zero means 200.
func NewCollector(expectedStatus int) *Collector {
	if expectedStatus == 0 {
		expectedStatus = http.StatusOK
	}
	return &Collector{
		expectedStatus: expectedStatus,
		// Requests from 1µs to 60s, iterations from 1µs to 1h, 3 significant figures.
		reqHist:      hdrhistogram.New(1, 60_000_000, 3),
		iterHist:     hdrhistogram.New(1, 3_600_000_000, 3),
		statusCounts: make(map[int]int64),
		errorsByType: make(map[string]int64),
	}
}

// CheckName is the label of the status assertion, e.g. "status was 200".
func (c *Collector) CheckName() string {
	return fmt.Sprintf("status was %d", c.expectedStatus)
}

// RecordIteration records every outcome of res plus its pacing data.
// Partial iterations (cancelled runs) are counted as well.
func (c *Collector) RecordIteration(res pacer.IterationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range res.Outcomes {
		c.recordOutcome(o)
	}

	c.iterations++
	if res.Overrun {
		c.overruns++
	}
	c.slept += res.Slept
	c.sumIteration += res.Elapsed
	if c.iterations == 1 || res.Elapsed < c.minIteration {
		c.minIteration = res.Elapsed
	}
	if res.Elapsed > c.maxIteration {
		c.maxIteration = res.Elapsed
	}
	recordClamped(c.iterHist, res.Elapsed)
}

func (c *Collector) recordOutcome(o pacer.RequestOutcome) {
	c.requests++
	latency := o.Elapsed
	recordClamped(c.reqHist, latency)
	c.sumLatency += latency
	if c.requests == 1 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if o.Succeeded {
		c.successes++
	} else {
		c.failures++
	}
	c.statusCounts[o.StatusCode]++
	if o.StatusCode == c.expectedStatus {
		c.checkPasses++
	}
	if o.Err != nil {
		c.errorsByType[ErrorLabel(o.Err)]++
	}
}

func recordClamped(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Total:     c.requests,
		Successes: c.successes,
		Failures:  c.failures,
		Duration:  elapsed,
	}
	stats.DurationMs = millis(elapsed)

	if c.requests > 0 {
		stats.FailureRate = float64(c.failures) / float64(c.requests)
		stats.Latency = summarize(c.reqHist, c.minLatency, c.maxLatency, time.Duration(int64(c.sumLatency)/c.requests))
		if elapsed > 0 {
			stats.RequestsPerSec = float64(c.requests) / elapsed.Seconds()
		}
	}

	stats.StatusCodes = FlattenStatusBuckets(c.statusCounts)
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}

	check := Check{Name: c.CheckName(), Passes: c.checkPasses, Fails: c.requests - c.checkPasses}
	if c.requests > 0 {
		check.Rate = float64(c.checkPasses) / float64(c.requests)
	}
	stats.Checks = []Check{check}

	iter := IterationStats{
		Count:    c.iterations,
		Overruns: c.overruns,
		Slept:    c.slept,
		SleptMs:  millis(c.slept),
	}
	if c.iterations > 0 {
		iter.OverrunRate = float64(c.overruns) / float64(c.iterations)
		iter.Duration = summarize(c.iterHist, c.minIteration, c.maxIteration, time.Duration(int64(c.sumIteration)/c.iterations))
	}
	stats.Iterations = iter
	return stats
}

func summarize(h *hdrhistogram.Histogram, minD, maxD, mean time.Duration) LatencyStats {
	s := LatencyStats{Min: minD, Max: maxD, Mean: mean}
	if h.TotalCount() > 0 {
		s.P50 = time.Duration(h.ValueAtQuantile(50)) * time.Microsecond
		s.P90 = time.Duration(h.ValueAtQuantile(90)) * time.Microsecond
		s.P95 = time.Duration(h.ValueAtQuantile(95)) * time.Microsecond
		s.P99 = time.Duration(h.ValueAtQuantile(99)) * time.Microsecond
	}
	s.MinMs = millis(s.Min)
	s.MaxMs = millis(s.Max)
	s.MeanMs = millis(s.Mean)
	s.P50Ms = millis(s.P50)
	s.P90Ms = millis(s.P90)
	s.P95Ms = millis(s.P95)
	s.P99Ms = millis(s.P99)
	return s
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
