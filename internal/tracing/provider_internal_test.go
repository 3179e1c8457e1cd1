package tracing

import (
	"context"
	"testing"

	"github.com/torosent/cadence/internal/config"
)

func TestServiceNameFallback(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	if got := serviceName(config.TracingConfig{}); got != TracerName {
		t.Errorf("serviceName() = %q, want %q", got, TracerName)
	}

	t.Setenv("OTEL_SERVICE_NAME", "orion-load")
	if got := serviceName(config.TracingConfig{}); got != "orion-load" {
		t.Errorf("serviceName() = %q, want env value", got)
	}
	if got := serviceName(config.TracingConfig{ServiceName: "rooms"}); got != "rooms" {
		t.Errorf("serviceName() = %q, want config value", got)
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := newSampler(tt.rate).Description(); got != tt.want {
			t.Errorf("newSampler(%g) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestNewResourceCarriesRunID(t *testing.T) {
	res, err := newResource(context.Background(), "cadence", "01JABCDEF")
	if err != nil {
		t.Fatalf("newResource() error = %v", err)
	}
	v, ok := res.Set().Value(RunIDKey)
	if !ok || v.AsString() != "01JABCDEF" {
		t.Errorf("run id attribute = %v (present %v)", v.AsString(), ok)
	}

	res, err = newResource(context.Background(), "cadence", "")
	if err != nil {
		t.Fatalf("newResource() error = %v", err)
	}
	if _, ok := res.Set().Value(RunIDKey); ok {
		t.Error("run id attribute set for empty run id")
	}
}
