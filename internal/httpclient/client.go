package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/cadence/internal/pacer"
	"github.com/torosent/cadence/internal/tracing"
)

// maxDrainBytes bounds how much of a response body is read before closing.
const maxDrainBytes = 4 << 20

func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithTracer records a client span per request. When propagate is set the
// W3C trace context is injected into the outgoing headers.
func WithTracer(tracer trace.Tracer, propagate bool) TransportOption {
	return func(t *Transport) {
		if tracer != nil {
			t.tracer = tracer
		}
		t.propagate = propagate
	}
}

// WithCorrelationHeader sets header to a fresh random UUID on every request.
func WithCorrelationHeader(header string) TransportOption {
	return func(t *Transport) {
		t.correlationHeader = http.CanonicalHeaderKey(header)
	}
}

// Transport sends pacer requests over HTTP and reports the status code.
type Transport struct {
	client            *http.Client
	tracer            trace.Tracer
	propagate         bool
	correlationHeader string
}

var _ pacer.Transport = (*Transport)(nil)

func NewTransport(client *http.Client, opts ...TransportOption) *Transport {
	if client == nil {
		client = NewClient(0)
	}
	t := &Transport{
		client: client,
		tracer: noop.NewTracerProvider().Tracer(tracing.TracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do issues req and returns the response status. Any error means no response
// was received; non-2xx statuses are not errors.
func (t *Transport) Do(ctx context.Context, req pacer.Request) (int, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := tracing.StartRequestSpan(ctx, t.tracer, method, req.URL, req.Index)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		err = fmt.Errorf("new request: %w", err)
		tracing.EndSpan(span, err)
		return pacer.StatusTransportFailure, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if t.correlationHeader != "" {
		id := uuid.NewString()
		httpReq.Header.Set(t.correlationHeader, id)
		span.SetAttributes(attribute.String("cadence.correlation_id", id))
	}
	if t.propagate {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		tracing.EndSpan(span, err)
		return pacer.StatusTransportFailure, err
	}
	_, drainErr := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()

	attrs := []attribute.KeyValue{attribute.Int("http.response.status_code", resp.StatusCode)}
	if drainErr != nil {
		// The status line arrived, so the request still counts as answered.
		span.AddEvent("response body read failed", trace.WithAttributes(attribute.String("error", drainErr.Error())))
	}
	tracing.EndSpan(span, nil, attrs...)
	return resp.StatusCode, nil
}
