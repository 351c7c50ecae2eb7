// Package metrics provides Prometheus metrics for the mixer.
//
// # Metrics Categories
//
//   - Dispatch: requests dispatched, dispatch duration, actions by outcome,
//     instance builds
//   - Reload: snapshot reloads by status, reload duration, active snapshot
//     sizes
//   - HTTP: check surface requests by route and status code
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDispatch("ok", 2*time.Millisecond)
//	collector.RecordAction("prom", metrics.OutcomeInvoked)
//	http.Handle("/metrics", collector.Handler())
//
// A nil *Collector is valid and records nothing.
//
// # Cardinality Management
//
// Handler and instance names come from configuration. The collector caps
// the distinct label values it tracks and folds the rest into "other".
package metrics
