// Package httpclient turns cadence scenarios into HTTP requests and executes
// them for the pacer.
//
// [NewRequestBuilder] resolves the configured scenario into per-index requests:
//
//	builder, err := httpclient.NewRequestBuilder(cfg, httpclient.WithFeeder(f))
//	if err != nil {
//		return err
//	}
//	iteration.Build = builder.Func(ctx)
//
// The version scenario issues GET <target>/version. The notify scenario posts a
// rendered entity notification to <target>/v2/notify. The custom scenario sends
// the configured method, headers and body to the target, expanding {{index}} and
// feeder placeholders in the URL, header values and body.
//
// [Transport] implements the pacer's transport on top of a pooled
// [net/http.Client] built by [NewClient]. Response bodies are drained so
// connections are reused across a burst, and every request gets a client span.
package httpclient
