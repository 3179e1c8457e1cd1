package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torosent/cadence/internal/config"
	"github.com/torosent/cadence/internal/pacer"
)

func TestSinkWritesOverrunMessage(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", config.LogFormatJSON)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	msg := pacer.OverrunMessage(time.Millisecond)
	Sink{Logger: logger}.Warn(msg)

	line := gjson.Parse(strings.TrimSpace(buf.String()))
	if got := line.Get("level").String(); got != "warn" {
		t.Errorf("level = %q, want warn", got)
	}
	if got := line.Get("message").String(); got != msg {
		t.Errorf("message = %q, want %q", got, msg)
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", config.LogFormatConsole)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info().Str("target", "http://orion:1026").Msg("starting run")

	out := buf.String()
	if !strings.Contains(out, "starting run") || !strings.Contains(out, "target=http://orion:1026") {
		t.Fatalf("unexpected console output: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "error", config.LogFormatJSON)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	Sink{Logger: logger}.Warn("dropped")
	if buf.Len() != 0 {
		t.Fatalf("warn written at error level: %q", buf.String())
	}
}

func TestNewRejectsBadSettings(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud", config.LogFormatJSON); err == nil {
		t.Errorf("expected error for unknown level")
	}
	if _, err := New(&bytes.Buffer{}, "info", config.LogFormat("xml")); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

func TestFailureLoggerLogsOnlyFailures(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", config.LogFormatJSON)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := pacer.IterationResult{Outcomes: []pacer.RequestOutcome{
		{Index: 0, StatusCode: 200, Succeeded: true},
		{Index: 1, StatusCode: 500, Elapsed: 2 * time.Millisecond},
		{Index: 2, StatusCode: pacer.StatusTransportFailure, Err: errors.New("connection refused")},
	}}
	NewFailureLogger(logger).LogIteration(3, 4, res)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), buf.String())
	}

	first := gjson.Parse(lines[0])
	if first.Get("level").String() != "warn" || first.Get("status").Int() != 500 || first.Get("index").Int() != 1 {
		t.Errorf("unexpected status failure entry: %s", lines[0])
	}
	if first.Get("vu").Int() != 3 || first.Get("iteration").Int() != 4 {
		t.Errorf("missing vu/iteration: %s", lines[0])
	}

	second := gjson.Parse(lines[1])
	if second.Get("level").String() != "error" || second.Get("error").String() != "connection refused" {
		t.Errorf("unexpected transport failure entry: %s", lines[1])
	}
}

func TestNilFailureLogger(t *testing.T) {
	var f *FailureLogger
	f.LogIteration(0, 0, pacer.IterationResult{Outcomes: []pacer.RequestOutcome{{}}})
}
