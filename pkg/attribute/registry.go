package attribute

import (
	"sort"
	"sync"

	"mercator-hq/mixer/pkg/schema"
)

// declaration is one manifest's claim on an attribute name.
type declaration struct {
	manifest string
	info     schema.AttributeInfo
}

// Registry is a thread-safe merge of the attributes declared by all
// registered manifests.
type Registry struct {
	mu sync.RWMutex

	// entries maps attribute name to its declarations in registration order.
	entries map[string][]declaration

	// manifests holds the current revision of each manifest by name.
	manifests map[string]schema.AttributeManifest
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[string][]declaration),
		manifests: make(map[string]schema.AttributeManifest),
	}
}

// Register validates and adds the attributes of a manifest. A manifest that
// is already registered under the same name is replaced atomically: either
// every attribute of the new revision is accepted or the registry is left
// unchanged.
func (r *Registry) Register(m schema.AttributeManifest) error {
	if m.Name == "" {
		return ErrUnnamedManifest
	}

	var invalid []string
	for name := range m.Attributes {
		if !ValidName(name) {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &NameError{Manifest: m.Name, Names: invalid}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range sortedNames(m.Attributes) {
		info := m.Attributes[name]
		for _, decl := range r.entries[name] {
			if decl.manifest == m.Name {
				continue
			}
			if decl.info.ValueType != info.ValueType {
				return &DuplicateError{
					Name:      name,
					Manifest:  m.Name,
					ValueType: info.ValueType,
					Owner:     decl.manifest,
					OwnerType: decl.info.ValueType,
				}
			}
		}
	}

	r.removeLocked(m.Name)
	for name, info := range m.Attributes {
		r.entries[name] = append(r.entries[name], declaration{manifest: m.Name, info: info})
	}
	r.manifests[m.Name] = m

	return nil
}

// Unregister removes every attribute declared by the named manifest.
// Attributes also declared by another manifest remain registered.
func (r *Registry) Unregister(manifestName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.manifests[manifestName]; !ok {
		return ErrManifestNotFound
	}
	r.removeLocked(manifestName)
	return nil
}

// Lookup returns the info of a registered attribute. When several manifests
// declare the same attribute, the earliest declaration wins.
func (r *Registry) Lookup(name string) (schema.AttributeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := r.entries[name]
	if len(decls) == 0 {
		return schema.AttributeInfo{}, false
	}
	return decls[0].info, true
}

// Owners returns the manifests declaring name, in registration order.
func (r *Registry) Owners(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := r.entries[name]
	owners := make([]string, len(decls))
	for i, d := range decls {
		owners[i] = d.manifest
	}
	return owners
}

// Manifest returns the current revision of a registered manifest.
func (r *Registry) Manifest(name string) (schema.AttributeManifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.manifests[name]
	return m, ok
}

// Manifests returns the names of all registered manifests, sorted.
func (r *Registry) Manifests() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names returns all registered attribute names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered attribute names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// removeLocked drops every declaration owned by manifestName. Callers hold the
// write lock.
func (r *Registry) removeLocked(manifestName string) {
	prev, ok := r.manifests[manifestName]
	if !ok {
		return
	}

	for name := range prev.Attributes {
		decls := r.entries[name]
		kept := decls[:0]
		for _, d := range decls {
			if d.manifest != manifestName {
				kept = append(kept, d)
			}
		}
		if len(kept) == 0 {
			delete(r.entries, name)
		} else {
			r.entries[name] = kept
		}
	}
	delete(r.manifests, manifestName)
}

func sortedNames(attrs map[string]schema.AttributeInfo) []string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
