package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAdapter is returned when a handler names an adapter that is
	// not registered.
	ErrUnknownAdapter = errors.New("unknown adapter")

	// ErrDuplicateAdapter is returned when two adapters share a name.
	ErrDuplicateAdapter = errors.New("duplicate adapter")

	// ErrClosed is returned by adapters used after Close.
	ErrClosed = errors.New("adapter closed")

	// ErrUnsupportedInstance is returned when an adapter cannot consume an
	// instance of the delivered template.
	ErrUnsupportedInstance = errors.New("unsupported instance")
)

// AdapterError is a failure reported by an adapter.
type AdapterError struct {
	// Adapter is the adapter name.
	Adapter string

	// Handler is the handler being served.
	Handler string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %q (handler %q): %v", e.Adapter, e.Handler, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *AdapterError) Unwrap() error {
	return e.Cause
}
