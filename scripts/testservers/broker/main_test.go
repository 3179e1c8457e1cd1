package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

func newTestBroker(opts brokerOptions) *httptest.Server {
	b := &broker{opts: opts, logger: zerolog.Nop()}
	return httptest.NewServer(b.routes())
}

func TestBrokerVersion(t *testing.T) {
	srv := newTestBroker(brokerOptions{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || gjson.GetBytes(body, "orion.version").String() == "" {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestBrokerNotify(t *testing.T) {
	srv := newTestBroker(brokerOptions{})
	defer srv.Close()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"data":[{"id":"Room:1","type":"Room"}]}`, http.StatusOK},
		{"invalid json", `{"data":`, http.StatusBadRequest},
		{"empty data", `{"data":[]}`, http.StatusBadRequest},
		{"missing type", `{"data":[{"id":"Room:1"}]}`, http.StatusBadRequest},
		{"attribute not an object", `{"data":[{"id":"Room:1","type":"Room","temperature":23.3}]}`, http.StatusBadRequest},
		{"notify body from cadence", `{"data":[{"id":"Room:1","type":"Room","temperature":{"value":23.3,"type":"Number"},"pressure":{"value":720,"type":"Integer"}}]}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v2/notify", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestBrokerForcedStatusAndDelay(t *testing.T) {
	srv := newTestBroker(brokerOptions{delay: 20 * time.Millisecond, status: http.StatusServiceUnavailable})
	defer srv.Close()

	start := time.Now()
	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Errorf("delay was not applied")
	}
}

func TestBrokerRejectsWrongMethod(t *testing.T) {
	srv := newTestBroker(brokerOptions{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/notify")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
