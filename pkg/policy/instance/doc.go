// Package instance compiles configured instances and builds concrete
// instances from request attributes.
//
// Every non-blank string leaf of an instance's params is an expression
// evaluated in a value position; blank strings and other leaves are
// constants. Maps and lists are walked
// recursively, so
//
//	params:
//	  value: "1"
//	  dimensions:
//	    source: source.service | "unknown"
//	    code: response.code
//
// builds a map with a numeric value and two dimensions resolved from the
// request. A Cache memoizes builds by instance name for the lifetime of one
// request.
package instance
