package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cadence",
		Short:         "Fixed-cadence HTTP load harness",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Request
	flags.String("target", "", "Base URL of the service under test")
	flags.StringP("scenario", "s", string(ScenarioVersion), "Request scenario: version, notify or custom")
	flags.String("method", "GET", "HTTP method for the custom scenario")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body for the custom scenario")
	flags.String("body-file", "", "Path to file containing the request body")
	flags.String("entities-file", "", "YAML or JSON file with entities for the notify scenario")
	flags.String("correlation-header", "", "Header that receives a fresh UUID on every request")
	flags.Int("expected-status", DefaultExpectedStatus, "Status code counted as a successful request")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")

	// Pacing
	flags.IntP("burst-size", "n", DefaultBurstSize, "Requests sent sequentially per iteration")
	flags.StringP("budget", "b", DefaultBudget.String(), "Wall-clock budget per iteration (e.g. 30s, 500ms or 0.001)")
	flags.IntP("iterations", "i", 1, "Iterations per virtual user (0 with --duration means unlimited)")
	flags.IntP("vus", "u", 1, "Number of virtual users running iterations in parallel")
	flags.DurationP("duration", "d", 0, "Stop starting new iterations after this long")
	flags.Float64("start-rate", 0, "Virtual users started per second (0 starts all at once)")

	// Feeder
	flags.String("feeder-path", "", "Path to CSV or JSON file supplying per-request records")
	flags.String("feeder-type", "", "Type of feeder file: 'csv' or 'json'")
	flags.Bool("feeder-rewind", true, "Restart the feeder from the first record once exhausted")

	// Output
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.Bool("progress", false, "Show a live iteration progress bar")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error or disabled")
	flags.String("log-format", string(LogFormatConsole), "Log format: console or json")
	flags.Bool("log-failures", false, "Log each failed request")
	flags.String("history-file", "", "Append a JSON line summarising the run to this file")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Pass/fail
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g. 'http_req_duration:p95 < 500')")
	flags.Bool("allow-failures", false, "Exit zero even when requests fail")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.String("tracing-service-name", "", "service.name resource attribute (default cadence)")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strFlags := map[string]*string{
		"target":               &cfg.TargetURL,
		"method":               &cfg.Method,
		"entities-file":        &cfg.EntitiesFile,
		"correlation-header":   &cfg.CorrelationHeader,
		"feeder-path":          &cfg.Feeder.Path,
		"feeder-type":          &cfg.Feeder.Type,
		"log-level":            &cfg.LogLevel,
		"history-file":         &cfg.HistoryFile,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	}
	for name, dst := range strFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("scenario") {
		val, err := fs.GetString("scenario")
		if err != nil {
			return err
		}
		cfg.Scenario = Scenario(val)
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = LogFormat(val)
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		val, err := fs.GetString("body-file")
		if err != nil {
			return err
		}
		cfg.BodyFile = val
		cfg.Body = ""
	}

	intFlags := map[string]*int{
		"burst-size":      &cfg.BurstSize,
		"vus":             &cfg.VUs,
		"expected-status": &cfg.ExpectedStatus,
	}
	for name, dst := range intFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}
	if fs.Changed("iterations") {
		val, err := fs.GetInt("iterations")
		if err != nil {
			return err
		}
		cfg.Iterations = val
		cfg.iterationsSet = true
	}

	if fs.Changed("budget") {
		raw, err := fs.GetString("budget")
		if err != nil {
			return err
		}
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("budget: %w", err)
		}
		cfg.Budget = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}

	floatFlags := map[string]*float64{
		"start-rate":          &cfg.StartRate,
		"tracing-sample-rate": &cfg.Tracing.SampleRate,
	}
	for name, dst := range floatFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetFloat64(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	boolFlags := map[string]*bool{
		"json-output":      &cfg.JSONOutput,
		"progress":         &cfg.Progress,
		"log-failures":     &cfg.LogFailures,
		"allow-failures":   &cfg.AllowFailures,
		"feeder-rewind":    &cfg.Feeder.Rewind,
		"tracing-insecure": &cfg.Tracing.Insecure,
	}
	for name, dst := range boolFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	for _, entry := range vals {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("header must be in key=value format: %s", entry)
		}
		key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
		if key == "" {
			return fmt.Errorf("header key cannot be empty")
		}
		cfg.Headers[key] = strings.TrimSpace(parts[1])
	}

	if fs.Changed("threshold") {
		thresholds, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, thresholds...)
	}
	return nil
}
