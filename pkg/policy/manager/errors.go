package manager

import (
	"errors"
	"fmt"
)

// ErrNotStarted is returned by Stop on a manager that was never started.
var ErrNotStarted = errors.New("manager not started")

// Reload stages.
const (
	StageLoad     = "load"
	StageValidate = "validate"
)

// ReloadError reports a rejected reload. The previous snapshot, if any,
// remains active.
type ReloadError struct {
	// Stage is StageLoad or StageValidate.
	Stage string

	// Source describes where the configuration came from.
	Source string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ReloadError) Error() string {
	return fmt.Sprintf("reload from %s failed at %s: %v", e.Source, e.Stage, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ReloadError) Unwrap() error {
	return e.Cause
}
