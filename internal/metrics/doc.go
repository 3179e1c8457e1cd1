// Package metrics aggregates the outcomes of paced iterations.
//
// A [Collector] is fed one [github.com/torosent/cadence/internal/pacer.IterationResult]
// at a time and keeps request latency and iteration duration histograms, a
// status code breakdown, grouped error labels, overrun counts and the total
// time spent sleeping between bursts:
//
//	collector := metrics.NewCollector(200)
//	collector.RecordIteration(result)
//	stats := collector.Stats(elapsed)
//
// Every request is also evaluated against the "status was <code>" check, whose
// pass rate is reported in [Stats.Checks].
//
// The Collector is safe for concurrent use by multiple virtual users.
package metrics
