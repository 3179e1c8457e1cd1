// Package history keeps a JSON-lines log of finished runs.
//
// Each line is one [Entry]. Writers and readers take an advisory lock on a
// sibling ".lock" file, so concurrent cadence processes can share one history
// file.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
)

// Entry is one finished run.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target"`
	Scenario  string    `json:"scenario"`
	BurstSize int       `json:"burst_size"`
	BudgetSec float64   `json:"budget_sec"`
	VUs       int       `json:"vus"`
	Summary   Summary   `json:"summary"`
	Passed    bool      `json:"passed"`
}

// Summary holds the headline numbers of a run.
type Summary struct {
	Iterations    int64   `json:"iterations"`
	Overruns      int64   `json:"overruns"`
	TotalRequests int64   `json:"total_requests"`
	Success       int64   `json:"success"`
	Fail          int64   `json:"fail"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms"`
}

// NewRunID returns a new lexically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

func lockPath(path string) string {
	return path + ".lock"
}

// Append writes e as one line at the end of the file at path, creating the
// file and its directory when needed. A missing ID or Timestamp is filled in.
func Append(path string, e Entry) (Entry, error) {
	if path == "" {
		return e, errors.New("history: path is required")
	}
	if e.ID == "" {
		e.ID = NewRunID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return e, fmt.Errorf("history: %w", err)
		}
	}

	line, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("history: encode entry: %w", err)
	}
	line = append(line, '\n')

	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return e, fmt.Errorf("history: lock %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return e, fmt.Errorf("history: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return e, fmt.Errorf("history: write %s: %w", path, err)
	}
	return e, f.Close()
}

// List returns every entry in the file, oldest first. A missing file yields
// no entries.
func List(path string) ([]Entry, error) {
	lock := flock.New(lockPath(path))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("history: lock %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("history: %s line %d: %w", path, lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("history: read %s: %w", path, err)
	}
	return entries, nil
}

// Get returns the entry with the given ID.
func Get(path, id string) (Entry, bool, error) {
	entries, err := List(path)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}
