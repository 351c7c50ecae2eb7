package engine

import "errors"

// ErrInvalidAttributes indicates a request whose attribute values cannot be
// represented.
var ErrInvalidAttributes = errors.New("invalid attributes")
