package snapshot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig is matched by every *ValidationError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyName indicates an instance or handler without a name.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrDuplicateName indicates two instances, handlers or manifests
	// sharing a name.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrUnknownHandler indicates an action naming a handler that does not
	// exist.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrUnknownInstance indicates an action naming an instance that does
	// not exist.
	ErrUnknownInstance = errors.New("unknown instance")

	// ErrUnknownTemplate indicates an instance of an unregistered template.
	ErrUnknownTemplate = errors.New("unknown template")

	// ErrUnknownAdapter indicates a handler served by an unknown adapter.
	ErrUnknownAdapter = errors.New("unknown adapter")
)

// Violation is one problem found in a configuration, located by a reference
// such as "rules[1].actions[0].handler".
type Violation struct {
	Ref string
	Err error
}

// Error returns the error message.
func (v Violation) Error() string {
	return fmt.Sprintf("%s: %v", v.Ref, v.Err)
}

// Unwrap returns the underlying error.
func (v Violation) Unwrap() error {
	return v.Err
}

// ValidationError lists every violation found in a rejected configuration.
type ValidationError struct {
	Violations []Violation
}

// Error returns a formatted list of all violations.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("%s: %s", ErrInvalidConfig, e.Violations[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %d violations:\n", ErrInvalidConfig, len(e.Violations)))
	for _, v := range e.Violations {
		sb.WriteString(fmt.Sprintf("  - %s\n", v.Error()))
	}
	return sb.String()
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Unwrap returns the individual violations.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		errs[i] = v
	}
	return errs
}

// Refs returns the reference of every violation in order.
func (e *ValidationError) Refs() []string {
	refs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		refs[i] = v.Ref
	}
	return refs
}
