package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is matched by every *SyntaxError.
	ErrSyntax = errors.New("syntax error")

	// ErrMissingAttribute indicates an absent attribute in a value position.
	ErrMissingAttribute = errors.New("missing attribute")

	// ErrTypeMismatch indicates operands or results of incompatible kinds.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnknownAttribute indicates a reference to an undeclared attribute.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// SyntaxError reports malformed expression source.
type SyntaxError struct {
	Source  string
	Offset  int
	Message string
}

// Error returns the error message.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d in %q: %s", e.Offset, e.Source, e.Message)
}

// Unwrap returns ErrSyntax.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// ErrorKind classifies evaluation and check failures.
type ErrorKind string

const (
	KindMissingAttribute ErrorKind = "MissingAttribute"
	KindTypeMismatch     ErrorKind = "TypeMismatch"
	KindUnknownAttribute ErrorKind = "UnknownAttribute"
)

// EvaluationError reports a failure to produce a value for a request.
type EvaluationError struct {
	Kind      ErrorKind
	Attribute string
	Message   string
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("%s: attribute %q: %s", e.Kind, e.Attribute, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the sentinel matching Kind.
func (e *EvaluationError) Unwrap() error {
	return sentinel(e.Kind)
}

// CheckError reports a static type-check failure.
type CheckError struct {
	Kind      ErrorKind
	Attribute string
	Offset    int
	Message   string
}

// Error returns the error message.
func (e *CheckError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("%s at offset %d: attribute %q: %s", e.Kind, e.Offset, e.Attribute, e.Message)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Message)
}

// Unwrap returns the sentinel matching Kind.
func (e *CheckError) Unwrap() error {
	return sentinel(e.Kind)
}

func sentinel(k ErrorKind) error {
	switch k {
	case KindMissingAttribute:
		return ErrMissingAttribute
	case KindTypeMismatch:
		return ErrTypeMismatch
	case KindUnknownAttribute:
		return ErrUnknownAttribute
	}
	return nil
}
