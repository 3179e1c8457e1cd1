package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Scenario:       ScenarioVersion,
		Method:         http.MethodGet,
		Headers:        map[string]string{},
		BurstSize:      DefaultBurstSize,
		Budget:         DefaultBudget,
		Iterations:     1,
		VUs:            1,
		Timeout:        DefaultTimeout,
		ExpectedStatus: DefaultExpectedStatus,
		LogLevel:       "info",
		LogFormat:      LogFormatConsole,
		Feeder:         FeederConfig{Rewind: true},
		Tracing:        TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}
	normalize(cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.TargetURL = strings.TrimRight(strings.TrimSpace(cfg.TargetURL), "/")
	cfg.Scenario = Scenario(strings.ToLower(strings.TrimSpace(string(cfg.Scenario))))
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	cfg.EntitiesFile = strings.TrimSpace(cfg.EntitiesFile)
	cfg.Feeder.Type = strings.ToLower(strings.TrimSpace(cfg.Feeder.Type))
	cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(string(cfg.LogFormat))))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.CorrelationHeader = http.CanonicalHeaderKey(strings.TrimSpace(cfg.CorrelationHeader))
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	// A duration-bound run ignores the default single iteration.
	if cfg.Duration > 0 && cfg.Iterations == 1 && !cfg.iterationsSet {
		cfg.Iterations = 0
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	strFields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"target"}, &cfg.TargetURL},
		{[]string{"method"}, &cfg.Method},
		{[]string{"body"}, &cfg.Body},
		{[]string{"bodyfile", "body_file", "body-file"}, &cfg.BodyFile},
		{[]string{"entitiesfile", "entities_file", "entities-file"}, &cfg.EntitiesFile},
		{[]string{"correlationheader", "correlation_header", "correlation-header"}, &cfg.CorrelationHeader},
		{[]string{"loglevel", "log_level", "log-level"}, &cfg.LogLevel},
		{[]string{"historyfile", "history_file", "history-file"}, &cfg.HistoryFile},
	}
	for _, f := range strFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "scenario"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		cfg.Scenario = Scenario(val)
	}
	if raw, ok := lookupSetting(settings, "logformat", "log_format", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logFormat: %w", err)
		}
		cfg.LogFormat = LogFormat(val)
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	intFields := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"burstsize", "burst_size", "burst-size"}, &cfg.BurstSize},
		{[]string{"vus"}, &cfg.VUs},
		{[]string{"expectedstatus", "expected_status", "expected-status"}, &cfg.ExpectedStatus},
	}
	for _, f := range intFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}
	if raw, ok := lookupSetting(settings, "iterations"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("iterations: %w", err)
		}
		cfg.Iterations = val
		cfg.iterationsSet = true
	}

	if raw, ok := lookupSetting(settings, "startrate", "start_rate", "start-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("startRate: %w", err)
		}
		cfg.StartRate = val
	}

	durFields := []struct {
		keys []string
		dst  *time.Duration
	}{
		{[]string{"budget"}, &cfg.Budget},
		{[]string{"duration"}, &cfg.Duration},
		{[]string{"timeout"}, &cfg.Timeout},
	}
	for _, f := range durFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = dur
		}
	}

	boolFields := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"progress"}, &cfg.Progress},
		{[]string{"logfailures", "log_failures", "log-failures"}, &cfg.LogFailures},
		{[]string{"allowfailures", "allow_failures", "allow-failures"}, &cfg.AllowFailures},
	}
	for _, f := range boolFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = vals
	}

	if raw, ok := lookupSetting(settings, "feeder"); ok {
		if err := applyFeederSettings(&cfg.Feeder, raw); err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

func applyFeederSettings(fc *FeederConfig, raw interface{}) error {
	section, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if v, ok := section["path"]; ok {
		if fc.Path, err = asString(v); err != nil {
			return fmt.Errorf("path: %w", err)
		}
	}
	if v, ok := section["type"]; ok {
		if fc.Type, err = asString(v); err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}
	if v, ok := section["rewind"]; ok {
		if fc.Rewind, err = asBool(v); err != nil {
			return fmt.Errorf("rewind: %w", err)
		}
	}
	return nil
}

func applyTracingSettings(tc *TracingConfig, raw interface{}) error {
	section, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if v, ok := lookupSetting(section, "endpoint"); ok {
		if tc.Endpoint, err = asString(v); err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
	}
	if v, ok := lookupSetting(section, "protocol"); ok {
		if tc.Protocol, err = asString(v); err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
	}
	if v, ok := lookupSetting(section, "insecure"); ok {
		if tc.Insecure, err = asBool(v); err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
	}
	if v, ok := lookupSetting(section, "service_name", "servicename", "service-name"); ok {
		if tc.ServiceName, err = asString(v); err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
	}
	if v, ok := lookupSetting(section, "sample_rate", "samplerate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(v); err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
	}
	if v, ok := lookupSetting(section, "propagate"); ok {
		b, err := asBool(v)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &b
	}
	return nil
}
