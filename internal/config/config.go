package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type Scenario string

const (
	ScenarioVersion Scenario = "version"
	ScenarioNotify  Scenario = "notify"
	ScenarioCustom  Scenario = "custom"
)

type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

const (
	DefaultBurstSize      = 100
	DefaultBudget         = 30 * time.Second
	DefaultTimeout        = 60 * time.Second
	DefaultExpectedStatus = 200
)

type Config struct {
	TargetURL         string            `mapstructure:"target"`
	Scenario          Scenario          `mapstructure:"scenario"`
	Method            string            `mapstructure:"method"`
	Headers           map[string]string `mapstructure:"headers"`
	Body              string            `mapstructure:"body"`
	BodyFile          string            `mapstructure:"body_file"`
	BurstSize         int               `mapstructure:"burst_size"`
	Budget            time.Duration     `mapstructure:"budget"`
	Iterations        int               `mapstructure:"iterations"`
	VUs               int               `mapstructure:"vus"`
	Duration          time.Duration     `mapstructure:"duration"`
	StartRate         float64           `mapstructure:"start_rate"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	ExpectedStatus    int               `mapstructure:"expected_status"`
	EntitiesFile      string            `mapstructure:"entities_file"`
	Feeder            FeederConfig      `mapstructure:"feeder"`
	CorrelationHeader string            `mapstructure:"correlation_header"`
	JSONOutput        bool              `mapstructure:"json_output"`
	Progress          bool              `mapstructure:"progress"`
	LogLevel          string            `mapstructure:"log_level"`
	LogFormat         LogFormat         `mapstructure:"log_format"`
	LogFailures       bool              `mapstructure:"log_failures"`
	Thresholds        []string          `mapstructure:"thresholds"`
	HistoryFile       string            `mapstructure:"history_file"`
	AllowFailures     bool              `mapstructure:"allow_failures"`
	Tracing           TracingConfig     `mapstructure:"tracing"`
	ConfigFile        string            `mapstructure:"-"`

	iterationsSet bool
}

type FeederConfig struct {
	Path   string `mapstructure:"path"`
	Type   string `mapstructure:"type"` // "csv" or "json"
	Rewind bool   `mapstructure:"rewind"`
}

// TracingConfig controls OpenTelemetry export. Tracing is enabled when an
// endpoint is configured either here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   *bool   `mapstructure:"propagate"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate defaults to true when tracing is enabled and propagate is unset.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q must be an absolute URL", target))
	}

	switch c.Scenario {
	case ScenarioVersion, ScenarioNotify, ScenarioCustom:
	default:
		issues = append(issues, fmt.Sprintf("scenario must be version, notify or custom, got %q", c.Scenario))
	}

	if c.Body != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and body_file cannot both be set")
	}
	if c.Scenario == ScenarioNotify && (c.Body != "" || c.BodyFile != "") {
		issues = append(issues, "notify scenario builds its own body; use entities_file instead of body")
	}
	if c.EntitiesFile != "" && c.Scenario != ScenarioNotify {
		issues = append(issues, "entities_file requires the notify scenario")
	}

	if c.BurstSize < 1 {
		issues = append(issues, "burst_size must be at least 1")
	}
	if c.Budget <= 0 {
		issues = append(issues, "budget must be greater than 0")
	}
	if c.VUs < 1 {
		issues = append(issues, "vus must be at least 1")
	}
	if c.Iterations < 0 {
		issues = append(issues, "iterations must be non-negative")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be non-negative")
	}
	if c.Iterations == 0 && c.Duration == 0 {
		issues = append(issues, "either iterations or duration must be set")
	}
	if c.StartRate < 0 {
		issues = append(issues, "start_rate must be non-negative")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be non-negative")
	}
	if c.ExpectedStatus < 100 || c.ExpectedStatus > 599 {
		issues = append(issues, fmt.Sprintf("expected_status must be a valid HTTP status code, got %d", c.ExpectedStatus))
	}

	if c.Feeder.Path != "" {
		switch strings.ToLower(c.Feeder.Type) {
		case "csv", "json":
		default:
			issues = append(issues, "feeder type must be csv or json")
		}
	} else if c.Feeder.Type != "" {
		issues = append(issues, "feeder path is required when feeder type is set")
	}

	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log_format must be console or json, got %q", c.LogFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q is not recognised", c.LogLevel))
	}

	if p := strings.ToLower(c.Tracing.Protocol); p != "" && p != "grpc" && p != "http" {
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http, got %q", c.Tracing.Protocol))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
