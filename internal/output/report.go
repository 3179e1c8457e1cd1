package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/torosent/cadence/internal/metrics"
	"github.com/torosent/cadence/internal/threshold"
)

// Report is everything printed at the end of a run.
type Report struct {
	RunID     string        `json:"run_id,omitempty"`
	Target    string        `json:"target"`
	Scenario  string        `json:"scenario"`
	BurstSize int           `json:"burst_size"`
	Budget    time.Duration `json:"-"`
	BudgetSec float64       `json:"budget_sec"`
	VUs       int           `json:"vus"`
	Stats     metrics.Stats `json:"stats"`

	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
	Passed     bool              `json:"passed"`
}

// ThresholdResult is the JSON view of a threshold.Result.
type ThresholdResult struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// NewThresholdResults converts evaluator output for reporting.
func NewThresholdResults(results []threshold.Result) []ThresholdResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]ThresholdResult, len(results))
	for i, r := range results {
		out[i] = ThresholdResult{Threshold: r.Threshold.Raw, Actual: r.Actual, Pass: r.Pass}
	}
	return out
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats

	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run:               %s\n", r.RunID)
	}
	if r.Target != "" {
		fmt.Fprintf(w, "Target:            %s (%s)\n", r.Target, r.Scenario)
	}
	if r.BurstSize > 0 {
		fmt.Fprintf(w, "Burst:             %d requests every %ss across %d VU(s)\n",
			r.BurstSize, strconv.FormatFloat(r.Budget.Seconds(), 'f', -1, 64), r.VUs)
	}
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)

	fmt.Fprintln(w, "\nLatency:")
	writeDistribution(w, stats.Latency)

	fmt.Fprintln(w, "\nIterations:")
	fmt.Fprintf(w, "  Count:           %d\n", stats.Iterations.Count)
	fmt.Fprintf(w, "  Overruns:        %d (%.1f%%)\n", stats.Iterations.Overruns, stats.Iterations.OverrunRate*100)
	fmt.Fprintf(w, "  Slept:           %s\n", stats.Iterations.Slept)
	if stats.Iterations.Count > 0 {
		fmt.Fprintf(w, "  Mean Burst:      %s\n", stats.Iterations.Duration.Mean)
		fmt.Fprintf(w, "  Max Burst:       %s\n", stats.Iterations.Duration.Max)
	}

	if len(stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		writeStatusBuckets(w, stats.StatusCodes, "  ")
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		labels := make([]string, 0, len(stats.Errors))
		for label := range stats.Errors {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if stats.Errors[labels[i]] == stats.Errors[labels[j]] {
				return labels[i] < labels[j]
			}
			return stats.Errors[labels[i]] > stats.Errors[labels[j]]
		})
		for _, label := range labels {
			fmt.Fprintf(w, "  %s: %d\n", label, stats.Errors[label])
		}
	}

	if len(stats.Checks) > 0 {
		fmt.Fprintln(w, "\nChecks:")
		for _, c := range stats.Checks {
			mark := "✓"
			if c.Fails > 0 {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %s %s: %.2f%% (%d passed, %d failed)\n", mark, c.Name, c.Rate*100, c.Passes, c.Fails)
		}
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, t := range r.Thresholds {
			mark := "✓"
			if !t.Pass {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %s %s (actual %.2f)\n", mark, t.Threshold, t.Actual)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	r.BudgetSec = r.Budget.Seconds()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeDistribution(w io.Writer, d metrics.LatencyStats) {
	fmt.Fprintf(w, "  Min:             %s\n", d.Min)
	fmt.Fprintf(w, "  Max:             %s\n", d.Max)
	fmt.Fprintf(w, "  Mean:            %s\n", d.Mean)
	fmt.Fprintf(w, "  P50:             %s\n", d.P50)
	fmt.Fprintf(w, "  P90:             %s\n", d.P90)
	fmt.Fprintf(w, "  P95:             %s\n", d.P95)
	fmt.Fprintf(w, "  P99:             %s\n", d.P99)
}

func writeStatusBuckets(w io.Writer, rows []metrics.StatusBucket, indent string) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s: %d\n", indent, row.Label, row.Count)
	}
}
