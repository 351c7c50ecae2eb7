// Package engine ties the runtime together: it reads the active snapshot,
// dispatches a request against it and delivers built instances to the
// adapter registry.
//
// Each Check reads the snapshot exactly once, so a reload that lands while a
// request is in flight never mixes two configurations within one request.
package engine
