// Package pacer runs fixed-cadence request iterations.
//
// An iteration sends a burst of BurstSize requests to a target one after another,
// checks every response against a success predicate, and then sleeps for whatever
// is left of the iteration budget. When the burst alone consumes the budget the
// iteration is marked as an overrun and a warning is emitted instead of sleeping.
//
// # Basic Usage
//
//	p := pacer.New(transport, pacer.WithWarningSink(sink))
//	res, err := p.RunIteration(ctx, pacer.IterationConfig{
//		TargetURL: "http://localhost:8668/version",
//		BurstSize: 100,
//		Budget:    30 * time.Second,
//		Build: func(i int) (pacer.Request, error) {
//			return pacer.Request{Method: http.MethodGet}, nil
//		},
//	})
//
// A Pacer holds no per-iteration state, so any number of goroutines may call
// RunIteration concurrently with the same or different configs.
//
// # Failures
//
// Transport failures and unexpected status codes are recorded in the returned
// outcomes and never abort the burst. Requests are not retried. Invalid
// configuration is reported as a *ConfigError before any request is issued, and
// cancelling ctx aborts the iteration with ctx.Err().
package pacer
