package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/torosent/cadence/internal/config"
	"github.com/torosent/cadence/internal/feeder"
	"github.com/torosent/cadence/internal/pacer"
	"github.com/torosent/cadence/internal/payload"
)

const (
	VersionPath = "/version"
	NotifyPath  = "/v2/notify"
)

// Feeder provides per-request data records for placeholder substitution.
type Feeder interface {
	Next(ctx context.Context) (feeder.Record, error)
}

// BuilderOption configures a RequestBuilder.
type BuilderOption func(*RequestBuilder)

// WithFeeder draws one record per request from f.
func WithFeeder(f Feeder) BuilderOption {
	return func(b *RequestBuilder) {
		b.feeder = f
	}
}

// WithEntities replaces the default Room entity of the notify scenario.
func WithEntities(entities []payload.Entity) BuilderOption {
	return func(b *RequestBuilder) {
		b.entities = entities
	}
}

// RequestBuilder produces the request for each burst index of a scenario.
type RequestBuilder struct {
	scenario config.Scenario
	method   string
	url      string
	headers  http.Header
	body     []byte
	template *payload.Template
	entities []payload.Entity
	feeder   Feeder
}

func NewRequestBuilder(cfg *config.Config, opts ...BuilderOption) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := strings.TrimRight(strings.TrimSpace(cfg.TargetURL), "/")
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	headers, err := buildHeaders(cfg.Headers)
	if err != nil {
		return nil, err
	}

	b := &RequestBuilder{scenario: cfg.Scenario, headers: headers}
	for _, opt := range opts {
		opt(b)
	}

	switch cfg.Scenario {
	case config.ScenarioVersion, "":
		b.scenario = config.ScenarioVersion
		b.method = http.MethodGet
		b.url = target + VersionPath
	case config.ScenarioNotify:
		b.method = http.MethodPost
		b.url = target + NotifyPath
		if b.headers.Get("Content-Type") == "" {
			b.headers.Set("Content-Type", "application/json")
		}
		entities := b.entities
		if len(entities) == 0 {
			entities = []payload.Entity{payload.DefaultRoom()}
		}
		if b.template, err = payload.NewTemplate(entities); err != nil {
			return nil, fmt.Errorf("notify entities: %w", err)
		}
	case config.ScenarioCustom:
		b.method = strings.ToUpper(strings.TrimSpace(cfg.Method))
		if b.method == "" {
			b.method = http.MethodGet
		}
		b.url = target
		if b.body, err = readBody(cfg.Body, cfg.BodyFile); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}
	return b, nil
}

func buildHeaders(raw map[string]string) (http.Header, error) {
	headers := http.Header{}
	for key, value := range raw {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n: ") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}
	return headers, nil
}

// URL returns the request URL before placeholder expansion.
func (b *RequestBuilder) URL() string {
	return b.url
}

// Method returns the HTTP method of the scenario.
func (b *RequestBuilder) Method() string {
	return b.method
}

// Build returns the request for burst index.
func (b *RequestBuilder) Build(ctx context.Context, index int) (pacer.Request, error) {
	if b == nil {
		return pacer.Request{}, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var record feeder.Record
	if b.feeder != nil {
		var err error
		record, err = b.feeder.Next(ctx)
		if err != nil {
			return pacer.Request{}, fmt.Errorf("feeder: %w", err)
		}
	}

	req := pacer.Request{
		Method: b.method,
		URL:    payload.Expand(b.url, index, record),
		Header: make(http.Header, len(b.headers)),
	}
	for key, values := range b.headers {
		for _, v := range values {
			req.Header.Add(key, payload.Expand(v, index, record))
		}
	}

	switch {
	case b.template != nil:
		body, err := b.template.Encode(index, record)
		if err != nil {
			return pacer.Request{}, err
		}
		req.Body = body
	case len(b.body) > 0:
		req.Body = []byte(payload.Expand(string(b.body), index, record))
	}
	return req, nil
}

// Func binds Build to ctx for use as an iteration's request builder.
func (b *RequestBuilder) Func(ctx context.Context) pacer.RequestBuilder {
	return func(index int) (pacer.Request, error) {
		return b.Build(ctx, index)
	}
}

func readBody(inline, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if inline != "" && path != "" {
		return nil, errors.New("body and body file cannot both be provided")
	}
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("body file %q is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	return data, nil
}
