// Package feeder supplies per-request data records loaded from CSV or JSON files.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Record is one row of named string fields.
type Record map[string]string

// ErrExhausted is returned by Next when every record was consumed and rewind is off.
var ErrExhausted = errors.New("feeder exhausted: no more records available")

// Kind names a supported file format.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindJSON Kind = "json"
)

// Feeder hands out records in file order. It is safe for concurrent use.
type Feeder struct {
	mu      sync.Mutex
	records []Record
	next    int
	rewind  bool
}

// Open loads path as kind. With rewind set the feeder wraps around after the
// last record instead of returning ErrExhausted.
func Open(path string, kind Kind, rewind bool) (*Feeder, error) {
	var (
		records []Record
		err     error
	)
	switch Kind(strings.ToLower(string(kind))) {
	case KindCSV:
		records, err = readCSV(path)
	case KindJSON:
		records, err = readJSON(path)
	default:
		return nil, fmt.Errorf("feeder: unsupported type %q (use csv or json)", kind)
	}
	if err != nil {
		return nil, err
	}
	return New(records, rewind), nil
}

// New wraps in-memory records.
func New(records []Record, rewind bool) *Feeder {
	return &Feeder{records: records, rewind: rewind}
}

// Next returns the next record.
func (f *Feeder) Next(ctx context.Context) (Record, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.records) == 0 {
		return nil, ErrExhausted
	}
	if f.next >= len(f.records) {
		if !f.rewind {
			return nil, ErrExhausted
		}
		f.next = 0
	}
	record := f.records[f.next]
	f.next++
	return record, nil
}

// Len returns the number of loaded records.
func (f *Feeder) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
