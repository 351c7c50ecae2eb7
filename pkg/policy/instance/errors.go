package instance

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownField indicates a param not declared by the template.
	ErrUnknownField = errors.New("field not declared by template")

	// ErrMissingField indicates a required template field that is not set.
	ErrMissingField = errors.New("required field not set")

	// ErrFieldKind indicates a field that evaluated to the wrong kind.
	ErrFieldKind = errors.New("field has wrong kind")

	// ErrNotMap indicates params that are not a map.
	ErrNotMap = errors.New("params must be a map")
)

// FieldError locates a problem at a dotted field path within params.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// CompileError lists every problem found while compiling one instance.
type CompileError struct {
	Instance string
	Fields   []*FieldError
}

func (e *CompileError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("instance %q: %s", e.Instance, strings.Join(parts, "; "))
}

// Unwrap returns the individual field errors.
func (e *CompileError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

// BuildError reports a failure building an instance for one request.
type BuildError struct {
	Instance string
	Field    string
	Cause    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build instance %q field %q: %v", e.Instance, e.Field, e.Cause)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}
