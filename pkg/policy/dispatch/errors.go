package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSnapshot is returned when there is no active configuration.
	ErrNoSnapshot = errors.New("no active snapshot")

	// ErrUnknownHandler is recorded when an action names a handler that is
	// not part of the snapshot.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrUnknownInstance is recorded when an action names an instance that
	// is not part of the snapshot.
	ErrUnknownInstance = errors.New("unknown instance")
)

// DispatchError is a request-time reference failure. It can only occur for
// snapshots that bypassed validation.
type DispatchError struct {
	// Ref identifies the action, e.g. "rules[1].actions[0]".
	Ref string

	// Name is the handler or instance name that did not resolve.
	Name string

	// Err is ErrUnknownHandler or ErrUnknownInstance.
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Ref, e.Err, e.Name)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// InvokeError wraps an error returned by an Invoker.
type InvokeError struct {
	Handler string
	Cause   error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("handler %q: %v", e.Handler, e.Cause)
}

func (e *InvokeError) Unwrap() error {
	return e.Cause
}
