package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torosent/cadence/internal/metrics"
	"github.com/torosent/cadence/internal/threshold"
)

func sampleReport() Report {
	return Report{
		RunID:     "01J9Z3N4C7M0K5S8F2D1Q6W3XR",
		Target:    "http://localhost:1026",
		Scenario:  "version",
		BurstSize: 100,
		Budget:    30 * time.Second,
		VUs:       1,
		Stats: metrics.Stats{
			Total:          100,
			Successes:      95,
			Failures:       5,
			FailureRate:    0.05,
			RequestsPerSec: 50.0,
			Latency: metrics.LatencyStats{
				P95:   120 * time.Millisecond,
				P95Ms: 120,
			},
			StatusCodes: []metrics.StatusBucket{
				{Code: 200, Label: "200 OK", Count: 95},
				{Code: 0, Label: "no response", Count: 5},
			},
			Errors: map[string]int{"Connection refused": 5},
			Checks: []metrics.Check{{Name: "status was 200", Passes: 95, Fails: 5, Rate: 0.95}},
			Iterations: metrics.IterationStats{
				Count:       1,
				Overruns:    1,
				OverrunRate: 1,
			},
			Duration: 2 * time.Second,
		},
	}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"Total Requests",
		"95",
		"100 requests every 30s across 1 VU(s)",
		"P95:             120ms",
		"Overruns:        1 (100.0%)",
		"200 OK: 95",
		"no response: 5",
		"Connection refused: 5",
		"✗ status was 200: 95.00%",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Thresholds:") {
		t.Errorf("thresholds section should be omitted without thresholds")
	}
}

func TestPrintReportFractionalBudget(t *testing.T) {
	r := sampleReport()
	r.Budget = 1500 * time.Millisecond

	var buf bytes.Buffer
	PrintReport(&buf, r)
	if !strings.Contains(buf.String(), "every 1.5s") {
		t.Errorf("expected fractional budget in output:\n%s", buf.String())
	}
}

func TestPrintReportThresholds(t *testing.T) {
	thresholds, err := threshold.ParseMultiple([]string{"http_req_failed:rate < 0.01", "http_req_duration:p95 < 500"})
	if err != nil {
		t.Fatal(err)
	}
	r := sampleReport()
	results := threshold.NewEvaluator(thresholds).Evaluate(r.Stats)
	r.Thresholds = NewThresholdResults(results)

	var buf bytes.Buffer
	PrintReport(&buf, r)

	output := buf.String()
	if !strings.Contains(output, "✗ http_req_failed:rate < 0.01 (actual 0.05)") {
		t.Errorf("expected failing threshold in output:\n%s", output)
	}
	if !strings.Contains(output, "✓ http_req_duration:p95 < 500 (actual 120.00)") {
		t.Errorf("expected passing threshold in output:\n%s", output)
	}
}

func TestPrintJSONReport(t *testing.T) {
	r := sampleReport()
	r.Passed = true

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, r); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	doc := gjson.ParseBytes(buf.Bytes())
	if got := doc.Get("budget_sec").Float(); got != 30 {
		t.Errorf("budget_sec = %v, want 30", got)
	}
	if got := doc.Get("stats.total").Int(); got != 100 {
		t.Errorf("stats.total = %d, want 100", got)
	}
	if got := doc.Get("stats.iterations.overruns").Int(); got != 1 {
		t.Errorf("stats.iterations.overruns = %d, want 1", got)
	}
	if got := doc.Get("stats.status_codes.1.label").String(); got != "no response" {
		t.Errorf("status_codes[1].label = %q", got)
	}
	if !doc.Get("passed").Bool() {
		t.Errorf("passed should be true")
	}
	if doc.Get("thresholds").Exists() {
		t.Errorf("thresholds should be omitted when empty")
	}
}

func TestNewThresholdResultsEmpty(t *testing.T) {
	if got := NewThresholdResults(nil); got != nil {
		t.Errorf("NewThresholdResults(nil) = %v, want nil", got)
	}
}
