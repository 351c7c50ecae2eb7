// Package telemetry groups the observability packages used by the mixer.
//
// # Components
//
//   - logging: slog construction, key redaction and request-scoped loggers
//   - metrics: Prometheus collectors for dispatch, reloads and HTTP
//   - tracing: OpenTelemetry spans for dispatch, reload and check requests
//   - health: readiness checks and the /healthz, /readyz and /version handlers
//
// Every collector and tracer is safe to use as a nil value, so packages
// accept them as optional dependencies:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	d, err := dispatch.New(adapters, &dispatch.Config{Metrics: collector, Tracer: tracer}, logger)
package telemetry
