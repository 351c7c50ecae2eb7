// Package templates defines the instance templates known to the runtime.
//
// A template names the shape of the value an instance builds. Templates with
// declared fields restrict the top-level params an instance may set and the
// kind each field must evaluate to; templates without fields accept any
// params.
package templates

import (
	"fmt"
	"sort"
	"sync"

	"mercator-hq/mixer/pkg/schema"
)

// FieldSpec describes one top-level field of a template.
type FieldSpec struct {
	// Kind is the value kind the field must evaluate to. KindNull accepts
	// any kind.
	Kind schema.Kind

	// Required fields must be set by every instance of the template.
	Required bool
}

// Template is a named instance shape.
type Template struct {
	Name string

	// Fields lists the declared fields. A nil map marks an open template.
	Fields map[string]FieldSpec
}

// Open reports whether the template accepts arbitrary fields.
func (t *Template) Open() bool {
	return t.Fields == nil
}

// Field returns the spec of a declared field.
func (t *Template) Field(name string) (FieldSpec, bool) {
	if t.Fields == nil {
		return FieldSpec{}, true
	}
	f, ok := t.Fields[name]
	return f, ok
}

// Required returns the sorted names of the required fields.
func (t *Template) Required() []string {
	var names []string
	for name, f := range t.Fields {
		if f.Required {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Registry holds templates by name. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register adds t. Registering a name twice is an error.
func (r *Registry) Register(t *Template) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[t.Name]; exists {
		return fmt.Errorf("template %q already registered", t.Name)
	}
	r.templates[t.Name] = t
	return nil
}

// Get returns the named template.
func (r *Registry) Get(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
