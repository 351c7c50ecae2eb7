// Package snapshot validates configurations and holds the active one.
//
// Build checks a schema.Config for internal consistency and compiles it into
// an immutable Snapshot: attribute registry, compiled rules, and name indexes
// over instances and handlers. A configuration with any problem is rejected
// wholesale with a *ValidationError listing every violation. Store holds the
// active snapshot behind an atomic pointer so request evaluations read it
// without locking and never observe a partial update.
package snapshot
