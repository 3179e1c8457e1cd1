package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/torosent/cadence/internal/config"
	"github.com/torosent/cadence/internal/history"
)

func newVersionServer(t *testing.T, status int, calls *int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		if r.URL.Path != "/version" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		io.WriteString(w, `{"orion":{"version":"3.10.1"}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunVersionScenarioJSONReport(t *testing.T) {
	var calls int64
	srv := newVersionServer(t, http.StatusOK, &calls)
	historyPath := filepath.Join(t.TempDir(), "history.jsonl")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--burst-size", "3",
		"--budget", "0.01",
		"--iterations", "2",
		"--vus", "2",
		"--json-output",
		"--history-file", historyPath,
		"--threshold", "http_req_failed:rate == 0",
		"--log-level", "error",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}
	if calls != 12 {
		t.Fatalf("server saw %d requests, want 12", calls)
	}

	doc := gjson.Parse(stdout.String())
	if got := doc.Get("stats.total").Int(); got != 12 {
		t.Errorf("stats.total = %d, want 12", got)
	}
	if got := doc.Get("stats.iterations.count").Int(); got != 4 {
		t.Errorf("stats.iterations.count = %d, want 4", got)
	}
	if !doc.Get("passed").Bool() {
		t.Errorf("run should pass: %s", stdout.String())
	}
	if got := doc.Get("thresholds.0.pass").Bool(); !got {
		t.Errorf("threshold should pass: %s", stdout.String())
	}

	entries, err := history.List(historyPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if entries[0].ID != doc.Get("run_id").String() || entries[0].Summary.TotalRequests != 12 {
		t.Errorf("history entry = %+v", entries[0])
	}
}

func TestRunNotifyScenario(t *testing.T) {
	var bodies atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/notify" {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		bodies.Store(string(data))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--scenario", "notify",
		"--burst-size", "2",
		"--budget", "0.01",
		"--log-level", "error",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	body, _ := bodies.Load().(string)
	if got := gjson.Get(body, "data.0.id").String(); got != "Room:1" {
		t.Errorf("notify entity id = %q in %s", got, body)
	}
	if !strings.Contains(stdout.String(), "Total Requests:    2") {
		t.Errorf("expected text report, got:\n%s", stdout.String())
	}
}

func TestRunFailedRequests(t *testing.T) {
	var calls int64
	srv := newVersionServer(t, http.StatusServiceUnavailable, &calls)

	args := []string{"--target", srv.URL, "--burst-size", "2", "--budget", "0.01", "--log-level", "error", "--log-failures"}

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	if !errors.Is(err, errRequestsFailed) {
		t.Fatalf("err = %v, want errRequestsFailed", err)
	}

	stdout.Reset()
	if err := run(context.Background(), append(args, "--allow-failures"), &stdout, &stderr); err != nil {
		t.Fatalf("--allow-failures should exit cleanly, got %v", err)
	}
	if !strings.Contains(stdout.String(), "503 Service Unavailable: 2") {
		t.Errorf("expected status breakdown, got:\n%s", stdout.String())
	}
}

func TestRunThresholdFailure(t *testing.T) {
	var calls int64
	srv := newVersionServer(t, http.StatusOK, &calls)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--burst-size", "1",
		"--budget", "0.01",
		"--threshold", "http_requests:count > 5",
		"--log-level", "error",
	}, &stdout, &stderr)
	if !errors.Is(err, errThresholdsFailed) {
		t.Fatalf("err = %v, want errThresholdsFailed", err)
	}
	if !strings.Contains(stdout.String(), "✗ http_requests:count > 5") {
		t.Errorf("expected failing threshold in report:\n%s", stdout.String())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--target", "http://localhost", "--burst-size", "0"}, &stdout, &stderr)
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("no report expected, got %q", stdout.String())
	}
}

func TestRunRejectsBadThreshold(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--target", "http://localhost", "--threshold", "nope"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("err = %v, want threshold parse error", err)
	}
}

func TestRunOverrunWarning(t *testing.T) {
	var calls int64
	srv := newVersionServer(t, http.StatusOK, &calls)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--burst-size", "5",
		"--budget", "0.000001",
		"--log-format", "json",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "Timer exhausted! The execution time of the test took longer than 0.000001 seconds") {
		t.Errorf("expected overrun warning in logs:\n%s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "Overruns:        1") {
		t.Errorf("expected overrun in report:\n%s", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	old := os.Stdout
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err == nil {
		os.Stdout = devNull
		defer func() {
			os.Stdout = old
			devNull.Close()
		}()
	}
	if err := run(context.Background(), []string{"--help"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("--help should not fail: %v", err)
	}
}

func TestRunHistoryCommand(t *testing.T) {
	var calls int64
	srv := newVersionServer(t, http.StatusOK, &calls)
	historyPath := filepath.Join(t.TempDir(), "history.jsonl")

	var runIDs []string
	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		err := run(context.Background(), []string{
			"--target", srv.URL,
			"--burst-size", "2",
			"--budget", "0.01",
			"--json-output",
			"--history-file", historyPath,
			"--log-level", "error",
		}, &stdout, &stderr)
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
		runIDs = append(runIDs, gjson.Get(stdout.String(), "run_id").String())
	}

	var list bytes.Buffer
	if err := run(context.Background(), []string{"history", "--history-file", historyPath}, &list, io.Discard); err != nil {
		t.Fatalf("history error = %v", err)
	}
	for _, id := range runIDs {
		if !strings.Contains(list.String(), id) {
			t.Errorf("expected run %s in listing:\n%s", id, list.String())
		}
	}
	if !strings.Contains(list.String(), "passed") {
		t.Errorf("expected result column in listing:\n%s", list.String())
	}

	var one bytes.Buffer
	if err := run(context.Background(), []string{"history", runIDs[1], "--history-file", historyPath}, &one, io.Discard); err != nil {
		t.Fatalf("history <id> error = %v", err)
	}
	for _, want := range []string{"Run:               " + runIDs[1], "Total Requests:    2", "Result:            passed"} {
		if !strings.Contains(one.String(), want) {
			t.Errorf("expected %q in:\n%s", want, one.String())
		}
	}

	var asJSON bytes.Buffer
	if err := run(context.Background(), []string{"history", "--history-file", historyPath, "--json-output"}, &asJSON, io.Discard); err != nil {
		t.Fatalf("history --json-output error = %v", err)
	}
	if got := gjson.Get(asJSON.String(), "#").Int(); got != 2 {
		t.Errorf("json listing has %d entries, want 2: %s", got, asJSON.String())
	}
	if got := gjson.Get(asJSON.String(), "0.summary.total_requests").Int(); got != 2 {
		t.Errorf("first entry total_requests = %d", got)
	}

	err := run(context.Background(), []string{"history", "01ZZZZZZZZZZZZZZZZZZZZZZZZ", "--history-file", historyPath}, io.Discard, io.Discard)
	if !errors.Is(err, errRunNotFound) {
		t.Errorf("err = %v, want errRunNotFound", err)
	}
}

func TestRunHistoryCommandEmpty(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "none.jsonl")
	if err := run(context.Background(), []string{"history", "--history-file", path}, &out, io.Discard); err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out.String(), "No runs recorded.") {
		t.Errorf("output = %q", out.String())
	}

	if err := run(context.Background(), []string{"history"}, io.Discard, io.Discard); err == nil {
		t.Error("expected error without --history-file")
	}
}

func TestRunLogsFeederSize(t *testing.T) {
	var calls int64
	srv := newVersionServer(t, http.StatusOK, &calls)
	dir := t.TempDir()
	feederPath := filepath.Join(dir, "users.csv")
	if err := os.WriteFile(feederPath, []byte("user\nalice\nbob\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "cadence.yaml")
	configYAML := "feeder:\n  path: " + feederPath + "\n  type: csv\n"
	if err := os.WriteFile(configPath, []byte(configYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--config", configPath,
		"--target", srv.URL,
		"--burst-size", "2",
		"--budget", "0.01",
		"--log-level", "debug",
		"--log-format", "json",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	found := false
	for _, line := range strings.Split(stderr.String(), "\n") {
		if gjson.Get(line, "message").String() == "feeder loaded" {
			found = true
			if got := gjson.Get(line, "records").Int(); got != 2 {
				t.Errorf("records = %d, want 2", got)
			}
		}
	}
	if !found {
		t.Errorf("expected feeder log line in:\n%s", stderr.String())
	}
}
