// Package tracing provides OpenTelemetry tracing for the mixer.
//
// # Overview
//
// One span is opened per dispatched request. Each action the dispatcher
// runs is recorded as a span event carrying the action reference, the
// target handler and the outcome. Spans are exported over OTLP gRPC.
//
// # Trace Context Propagation
//
// W3C Trace Context headers on the check endpoint are honored, so the
// dispatch span joins the caller's trace:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// # Sampling Strategies
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//
// All strategies respect the parent's sampling decision.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanDispatch)
//	defer span.End()
//
// When tracing is disabled New returns a tracer backed by the noop
// provider, so callers never need to nil-check.
package tracing
