package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/torosent/cadence/internal/feeder"
)

func TestFriendlyErrorName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Unknown error"},
		{"*url.Error", "Request URL error"},
		{"*net.OpError", "Network error"},
		{"*context.deadlineExceededError", "Context deadline exceeded"},
		{"*tls.RecordHeaderError", "Record Header Error (tls)"},
		{"*main.HTTPError", "HTTP Error"},
		{"github.com/acme/x509.UnknownAuthorityError", "Unknown Authority Error (x509)"},
	}
	for _, tt := range tests {
		if got := FriendlyErrorName(tt.in); got != tt.want {
			t.Errorf("FriendlyErrorName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestErrorLabel(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, "Context deadline exceeded"},
		{"canceled", context.Canceled, "Context canceled"},
		{"feeder", fmt.Errorf("build request 3: feeder: %w", feeder.ErrExhausted), "Feeder exhausted"},
		{"refused", refused, "Connection refused"},
		{"timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, "Request timeout"},
		{"dns", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, "DNS lookup failed"},
		{"plain", errors.New("boom"), "Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorLabel(tt.err); got != tt.want {
				t.Errorf("ErrorLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlattenStatusBuckets(t *testing.T) {
	if rows := FlattenStatusBuckets(nil); rows != nil {
		t.Fatalf("nil map should give nil rows, got %v", rows)
	}
	rows := FlattenStatusBuckets(map[int]int64{404: 3, 200: 3, 0: 7, 799: 1})
	want := []StatusBucket{
		{Code: 0, Label: "no response", Count: 7},
		{Code: 200, Label: "200 OK", Count: 3},
		{Code: 404, Label: "404 Not Found", Count: 3},
		{Code: 799, Label: "799", Count: 1},
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}
