package metrics

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/torosent/cadence/internal/pacer"
)

// StatusBucket is the number of requests that ended with one status code.
type StatusBucket struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// StatusLabel names a status code. Code 0 marks requests that got no response.
func StatusLabel(code int) string {
	if code == pacer.StatusTransportFailure {
		return "no response"
	}
	if text := http.StatusText(code); text != "" {
		return strconv.Itoa(code) + " " + text
	}
	return strconv.Itoa(code)
}

// FlattenStatusBuckets converts a code->count map into rows sorted by
// descending count, then ascending code for stability.
func FlattenStatusBuckets(counts map[int]int64) []StatusBucket {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(counts))
	for code, count := range counts {
		rows = append(rows, StatusBucket{Code: code, Label: StatusLabel(code), Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
