package httpclient

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/torosent/cadence/internal/config"
	"github.com/torosent/cadence/internal/feeder"
	"github.com/torosent/cadence/internal/payload"
)

const defaultRoomBody = `{"data":[{"id":"Room:1","type":"Room","temperature":{"value":23.3,"type":"Number"},"pressure":{"value":720,"type":"Integer"}}]}`

func TestVersionScenario(t *testing.T) {
	cfg := &config.Config{TargetURL: "http://orion:1026/", Scenario: config.ScenarioVersion}
	builder, err := NewRequestBuilder(cfg)
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}

	req, err := builder.Build(context.Background(), 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Method != http.MethodGet || req.URL != "http://orion:1026/version" {
		t.Fatalf("request = %s %s", req.Method, req.URL)
	}
	if len(req.Body) != 0 {
		t.Fatalf("version request should have no body, got %q", req.Body)
	}
}

func TestNotifyScenarioDefaultRoom(t *testing.T) {
	cfg := &config.Config{
		TargetURL: "http://orion:1026",
		Scenario:  config.ScenarioNotify,
		Headers:   map[string]string{"fiware-service": "openiot"},
	}
	builder, err := NewRequestBuilder(cfg)
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}

	req, err := builder.Build(context.Background(), 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Method != http.MethodPost || req.URL != "http://orion:1026/v2/notify" {
		t.Fatalf("request = %s %s", req.Method, req.URL)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := req.Header.Get("Fiware-Service"); got != "openiot" {
		t.Errorf("Fiware-Service = %q", got)
	}
	if string(req.Body) != defaultRoomBody {
		t.Fatalf("body = %s\nwant   %s", req.Body, defaultRoomBody)
	}
}

func TestNotifyScenarioWithEntitiesAndFeeder(t *testing.T) {
	entities := []payload.Entity{{
		ID:   "Room:{{room}}",
		Type: "Room",
		Attributes: []payload.Attribute{
			{Name: "temperature", Type: payload.TypeNumber, Value: "{{temp}}"},
			{Name: "seq", Type: payload.TypeInteger, Value: "{{index}}"},
		},
	}}
	f := feeder.New([]feeder.Record{{"room": "7", "temp": "19.5"}}, true)
	cfg := &config.Config{TargetURL: "http://orion:1026", Scenario: config.ScenarioNotify}

	builder, err := NewRequestBuilder(cfg, WithEntities(entities), WithFeeder(f))
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	req, err := builder.Func(context.Background())(4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := `{"data":[{"id":"Room:7","type":"Room","temperature":{"value":19.5,"type":"Number"},"seq":{"value":4,"type":"Integer"}}]}`
	if string(req.Body) != want {
		t.Fatalf("body = %s\nwant   %s", req.Body, want)
	}
}

func TestCustomScenarioExpandsPlaceholders(t *testing.T) {
	cfg := &config.Config{
		TargetURL: "http://api.local/items/{{id}}",
		Scenario:  config.ScenarioCustom,
		Method:    "put",
		Headers:   map[string]string{"x-request": "req-{{index}}"},
		Body:      `{"name":"{{name|anon}}"}`,
	}
	f := feeder.New([]feeder.Record{{"id": "42"}}, true)
	builder, err := NewRequestBuilder(cfg, WithFeeder(f))
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}

	req, err := builder.Build(context.Background(), 9)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Method != http.MethodPut {
		t.Errorf("method = %s, want PUT", req.Method)
	}
	if req.URL != "http://api.local/items/42" {
		t.Errorf("url = %s", req.URL)
	}
	if req.Header.Get("X-Request") != "req-9" {
		t.Errorf("X-Request = %q", req.Header.Get("X-Request"))
	}
	if string(req.Body) != `{"name":"anon"}` {
		t.Errorf("body = %s", req.Body)
	}
}

func TestCustomScenarioBodyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, []byte(`{"n":{{index}}}`), 0o600); err != nil {
		t.Fatalf("write body: %v", err)
	}
	cfg := &config.Config{TargetURL: "http://api.local", Scenario: config.ScenarioCustom, Method: "POST", BodyFile: path}
	builder, err := NewRequestBuilder(cfg)
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	req, err := builder.Build(context.Background(), 2)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if string(req.Body) != `{"n":2}` {
		t.Fatalf("body = %s", req.Body)
	}
}

func TestBuildReportsFeederExhaustion(t *testing.T) {
	f := feeder.New([]feeder.Record{{"id": "1"}}, false)
	builder, err := NewRequestBuilder(&config.Config{TargetURL: "http://a", Scenario: config.ScenarioVersion}, WithFeeder(f))
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), 0); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), 1); !errors.Is(err, feeder.ErrExhausted) {
		t.Fatalf("second Build() error = %v, want ErrExhausted", err)
	}
}

func TestNewRequestBuilderErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"nil config", nil},
		{"empty target", &config.Config{Scenario: config.ScenarioVersion}},
		{"empty header key", &config.Config{TargetURL: "http://a", Headers: map[string]string{" ": "v"}}},
		{"header key newline", &config.Config{TargetURL: "http://a", Headers: map[string]string{"Bad\nKey": "v"}}},
		{"header value newline", &config.Config{TargetURL: "http://a", Headers: map[string]string{"X": "a\r\nb"}}},
		{"unknown scenario", &config.Config{TargetURL: "http://a", Scenario: "soak"}},
		{"body and file", &config.Config{TargetURL: "http://a", Scenario: config.ScenarioCustom, Body: "x", BodyFile: "y"}},
		{"missing body file", &config.Config{TargetURL: "http://a", Scenario: config.ScenarioCustom, BodyFile: filepath.Join(dir, "nope")}},
		{"body file is dir", &config.Config{TargetURL: "http://a", Scenario: config.ScenarioCustom, BodyFile: dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRequestBuilder(tt.cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestInvalidEntitiesRejected(t *testing.T) {
	cfg := &config.Config{TargetURL: "http://a", Scenario: config.ScenarioNotify}
	_, err := NewRequestBuilder(cfg, WithEntities([]payload.Entity{{Type: "Room"}}))
	if err == nil {
		t.Fatalf("expected error for entity without id")
	}
}
