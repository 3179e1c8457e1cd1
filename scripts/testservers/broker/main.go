// Command broker is a stand-in context broker for trying cadence locally.
//
// It answers GET /version and POST /v2/notify, optionally after a fixed delay
// or with a forced status code, so overruns and failures can be provoked:
//
//	go run ./scripts/testservers/broker --port 1026 --delay 50ms
//	cadence --target http://localhost:1026 --scenario notify --budget 1
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/torosent/cadence/internal/payload"
)

type brokerOptions struct {
	delay  time.Duration
	status int
}

type broker struct {
	opts     brokerOptions
	logger   zerolog.Logger
	notified atomic.Int64
}

func main() {
	port := pflag.Int("port", 1026, "Listening port")
	delay := pflag.Duration("delay", 0, "Delay added to every response")
	status := pflag.Int("status", 0, "Force this status code on every response (0 keeps the normal one)")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).With().Timestamp().Logger()
	b := &broker{opts: brokerOptions{delay: *delay, status: *status}, logger: logger}

	addr := fmt.Sprintf(":%d", *port)
	logger.Info().Str("addr", addr).Dur("delay", *delay).Msg("broker listening")
	if err := http.ListenAndServe(addr, b.routes()); err != nil {
		logger.Fatal().Err(err).Msg("broker stopped")
	}
}

func (b *broker) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /version", b.handleVersion)
	mux.HandleFunc("POST /v2/notify", b.handleNotify)
	return mux
}

func (b *broker) wait(r *http.Request) bool {
	if b.opts.delay <= 0 {
		return true
	}
	timer := time.NewTimer(b.opts.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func (b *broker) status(normal int) int {
	if b.opts.status != 0 {
		return b.opts.status
	}
	return normal
}

func (b *broker) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !b.wait(r) {
		return
	}
	respondJSON(w, b.status(http.StatusOK), map[string]any{
		"orion": map[string]any{"version": "3.10.1", "uptime": "0 d, 0 h, 0 m, 1 s"},
	})
}

func (b *broker) handleNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "ParseError", "description": err.Error()})
		return
	}
	n, err := payload.DecodeNotification(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "ParseError", "description": err.Error()})
		return
	}
	if len(n.Data) == 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "BadRequest", "description": "no entities in data"})
		return
	}
	for _, e := range n.Data {
		if err := e.Validate(); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]any{"error": "BadRequest", "description": err.Error()})
			return
		}
	}
	if !b.wait(r) {
		return
	}
	total := b.notified.Add(int64(len(n.Data)))
	b.logger.Debug().Int64("entities", total).Str("first_id", n.Data[0].ID).
		Int("attributes", len(n.Data[0].Attributes)).Msg("notification received")
	w.WriteHeader(b.status(http.StatusOK))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
