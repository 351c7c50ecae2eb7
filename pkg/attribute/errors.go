package attribute

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/mixer/pkg/schema"
)

var (
	// ErrInvalidAttributeName indicates a name violating the attribute grammar.
	ErrInvalidAttributeName = errors.New("invalid attribute name")

	// ErrDuplicateAttribute indicates a name declared with conflicting types.
	ErrDuplicateAttribute = errors.New("duplicate attribute")

	// ErrUnnamedManifest indicates a manifest without a name.
	ErrUnnamedManifest = errors.New("manifest name cannot be empty")

	// ErrManifestNotFound indicates an unregister of an unknown manifest.
	ErrManifestNotFound = errors.New("manifest not found")
)

// NameError reports the attribute names of a manifest that violate the grammar.
type NameError struct {
	Manifest string
	Names    []string
}

// Error returns the error message.
func (e *NameError) Error() string {
	return fmt.Sprintf("manifest %q: %s: %s", e.Manifest, ErrInvalidAttributeName, strings.Join(e.Names, ", "))
}

// Unwrap returns ErrInvalidAttributeName.
func (e *NameError) Unwrap() error {
	return ErrInvalidAttributeName
}

// DuplicateError reports an attribute already registered by another manifest
// with a different value type.
type DuplicateError struct {
	Name      string
	Manifest  string
	ValueType schema.ValueType
	Owner     string
	OwnerType schema.ValueType
}

// Error returns the error message.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q: manifest %q declares %s, already declared %s by manifest %q",
		ErrDuplicateAttribute, e.Name, e.Manifest, e.ValueType, e.OwnerType, e.Owner)
}

// Unwrap returns ErrDuplicateAttribute.
func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateAttribute
}
