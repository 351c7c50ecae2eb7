// Package server exposes the engine over HTTP.
//
// Routes:
//
//	POST /v1/check     dispatch an attribute bag, returns the dispatch result
//	GET  /v1/snapshot  summary of the active snapshot and reload status
//	POST /v1/reload    reload configuration from its source
//	GET  /healthz      liveness
//	GET  /readyz       readiness (a snapshot is active and adapters are healthy)
//	GET  /version      build information
//	GET  /metrics      Prometheus metrics
//
// A check request is a JSON object holding the attribute values:
//
//	{"attributes": {"destination.service": "ratings.default", "response.code": 200}}
//
// Every response carries an X-Request-ID header. A request ID supplied by the
// client is reused.
package server
