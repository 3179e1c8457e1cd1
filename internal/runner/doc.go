// Package runner is the load test execution engine for cadence.
//
// A [Runner] starts a number of virtual users (VUs). Every VU owns a goroutine
// and loops [github.com/torosent/cadence/internal/pacer.Pacer.RunIteration],
// so each VU sends one burst per budget window:
//
//	r := runner.New(runner.Options{
//		VUs:        4,
//		Iterations: 10,
//		Iterator:   p,
//		Iteration:  pacer.IterationConfig{TargetURL: url, BurstSize: 100, Budget: 30 * time.Second},
//		Recorder:   collector,
//	})
//	result, err := r.Run(ctx)
//
// # Termination
//
// A VU stops after Iterations iterations, or once Duration has elapsed when
// Iterations is zero. An iteration that started before Duration may finish
// within GracefulStop, which defaults to the iteration budget. Cancelling the
// context stops every VU after its current request.
//
// # Staggered start
//
// StartRate limits how many VUs start per second using a token bucket from
// golang.org/x/time/rate. Zero starts all VUs at once.
package runner
