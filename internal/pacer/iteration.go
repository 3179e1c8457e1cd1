package pacer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StatusTransportFailure is the status code recorded when no HTTP response was received.
const StatusTransportFailure = 0

// DefaultExpectedStatus is the status code treated as success when no predicate is configured.
const DefaultExpectedStatus = http.StatusOK

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid iteration config")

// Request describes one request of a burst.
type Request struct {
	Index  int // burst index, set by the pacer
	Method string
	URL    string // empty means IterationConfig.TargetURL
	Header http.Header
	Body   []byte
}

// RequestBuilder produces the request for burst index i.
// It is called exactly once per index and must be safe to call from the goroutine
// running the iteration.
type RequestBuilder func(index int) (Request, error)

// SuccessPredicate decides whether a completed request counts as a success.
type SuccessPredicate func(RequestOutcome) bool

// IterationConfig describes one paced iteration. It is not modified by the pacer.
type IterationConfig struct {
	TargetURL      string
	BurstSize      int
	Budget         time.Duration
	Build          RequestBuilder
	ExpectedStatus int              // 0 means DefaultExpectedStatus
	Success        SuccessPredicate // overrides ExpectedStatus when set
}

// BudgetSeconds returns the iteration budget in seconds.
func (c IterationConfig) BudgetSeconds() float64 {
	return c.Budget.Seconds()
}

// Validate reports every problem with the config as a *ConfigError.
func (c IterationConfig) Validate() error {
	var issues []string
	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target URL is required")
	}
	if c.BurstSize < 1 {
		issues = append(issues, fmt.Sprintf("burst size must be >= 1, got %d", c.BurstSize))
	}
	if c.Budget <= 0 {
		issues = append(issues, fmt.Sprintf("budget must be > 0, got %s", c.Budget))
	}
	if c.Build == nil {
		issues = append(issues, "request builder is required")
	}
	if c.ExpectedStatus < 0 {
		issues = append(issues, fmt.Sprintf("expected status must be >= 0, got %d", c.ExpectedStatus))
	}
	if len(issues) > 0 {
		return &ConfigError{issues: issues}
	}
	return nil
}

func (c IterationConfig) succeeded(outcome RequestOutcome) bool {
	if outcome.StatusCode == StatusTransportFailure {
		return false
	}
	if c.Success != nil {
		return c.Success(outcome)
	}
	expected := c.ExpectedStatus
	if expected == 0 {
		expected = DefaultExpectedStatus
	}
	return outcome.StatusCode == expected
}

// ConfigError reports an invalid IterationConfig.
type ConfigError struct {
	issues []string
}

func (e *ConfigError) Error() string {
	if len(e.issues) == 0 {
		return ErrInvalidConfig.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual validation failures.
func (e *ConfigError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// RequestOutcome is the recorded result of one request in a burst.
type RequestOutcome struct {
	Index      int
	StatusCode int
	Succeeded  bool
	Elapsed    time.Duration
	Err        error // transport or build failure, nil when a response arrived
}

// ElapsedMillis returns the request latency in milliseconds.
func (o RequestOutcome) ElapsedMillis() float64 {
	return float64(o.Elapsed) / float64(time.Millisecond)
}

// IterationResult summarizes one paced iteration.
type IterationResult struct {
	Outcomes []RequestOutcome
	Elapsed  time.Duration // time spent on the burst, excluding the pacing sleep
	Overrun  bool
	Slept    time.Duration
}

// TotalElapsedSeconds returns the burst duration in seconds.
func (r IterationResult) TotalElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// SleptSeconds returns the pacing sleep in seconds.
func (r IterationResult) SleptSeconds() float64 {
	return r.Slept.Seconds()
}

// SuccessCount returns the number of successful outcomes.
func (r IterationResult) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed outcomes.
func (r IterationResult) FailureCount() int {
	return len(r.Outcomes) - r.SuccessCount()
}
