package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/expr"
	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/policy/rules"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/templates"
)

// AdapterFinder reports whether an adapter is available.
type AdapterFinder interface {
	Has(name string) bool
}

// Options controls Build.
type Options struct {
	// StrictAttributes type-checks every expression against the declared
	// attributes and rejects references to undeclared ones.
	StrictAttributes bool

	// Templates resolves instance templates. Nil uses templates.Default().
	Templates *templates.Registry

	// Adapters, when set, must know the adapter of every handler.
	Adapters AdapterFinder

	// Revision labels the snapshot.
	Revision string
}

// Snapshot is a validated, immutable configuration. It is shared read-only
// by concurrent request evaluations.
type Snapshot struct {
	id        string
	revision  string
	createdAt time.Time

	registry  *attribute.Registry
	rules     *rules.Index
	instances map[string]*instance.Definition
	handlers  map[string]*schema.Handler
}

// ID returns the unique identifier assigned when the snapshot was built.
func (s *Snapshot) ID() string { return s.id }

// Revision returns the revision label given at build time.
func (s *Snapshot) Revision() string { return s.revision }

// CreatedAt returns the build time.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Attributes returns a read-only view of the attributes declared by the
// manifests.
func (s *Snapshot) Attributes() Attributes { return Attributes{r: s.registry} }

// Attributes is a read-only view of a snapshot's attribute registry. It
// implements expr.AttributeFinder.
type Attributes struct {
	r *attribute.Registry
}

// Lookup returns the declaration of name.
func (a Attributes) Lookup(name string) (schema.AttributeInfo, bool) { return a.r.Lookup(name) }

// Owners returns the manifests declaring name.
func (a Attributes) Owners(name string) []string { return a.r.Owners(name) }

// Manifests returns the registered manifest names.
func (a Attributes) Manifests() []string { return a.r.Manifests() }

// Names returns every declared attribute name.
func (a Attributes) Names() []string { return a.r.Names() }

// Len returns the number of declared attributes.
func (a Attributes) Len() int { return a.r.Len() }

// Rules returns the compiled rule index.
func (s *Snapshot) Rules() *rules.Index { return s.rules }

// Instance returns the compiled instance definition with the given name.
func (s *Snapshot) Instance(name string) (*instance.Definition, bool) {
	d, ok := s.instances[name]
	return d, ok
}

// Handler returns the handler with the given name.
func (s *Snapshot) Handler(name string) (*schema.Handler, bool) {
	h, ok := s.handlers[name]
	return h, ok
}

// Handlers returns every handler sorted by name.
func (s *Snapshot) Handlers() []*schema.Handler {
	out := make([]*schema.Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Summary describes a snapshot for logs and introspection.
type Summary struct {
	ID         string    `json:"id"`
	Revision   string    `json:"revision,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Manifests  int       `json:"manifests"`
	Attributes int       `json:"attributes"`
	Rules      int       `json:"rules"`
	Instances  int       `json:"instances"`
	Handlers   int       `json:"handlers"`
}

// Summary returns the snapshot's counts.
func (s *Snapshot) Summary() Summary {
	return Summary{
		ID:         s.id,
		Revision:   s.revision,
		CreatedAt:  s.createdAt,
		Manifests:  len(s.registry.Manifests()),
		Attributes: s.registry.Len(),
		Rules:      s.rules.Len(),
		Instances:  len(s.instances),
		Handlers:   len(s.handlers),
	}
}

// Build validates cfg and compiles it into a Snapshot. Every check runs;
// a configuration with any violation is rejected with a *ValidationError
// listing all of them.
func Build(cfg *schema.Config, opts Options) (*Snapshot, error) {
	if cfg == nil {
		return nil, &ValidationError{Violations: []Violation{{Ref: "config", Err: errors.New("configuration cannot be nil")}}}
	}
	if opts.Templates == nil {
		opts.Templates = templates.Default()
	}

	v := &validator{cfg: cfg, opts: opts}
	snap := v.run()
	if len(v.violations) > 0 {
		return nil, &ValidationError{Violations: v.violations}
	}
	return snap, nil
}

// BuildUnchecked compiles cfg like Build but tolerates action references to
// handlers and instances that do not exist. Such actions fail at dispatch
// time instead. Every other violation still rejects cfg.
func BuildUnchecked(cfg *schema.Config, opts Options) (*Snapshot, error) {
	if cfg == nil {
		return Build(cfg, opts)
	}
	if opts.Templates == nil {
		opts.Templates = templates.Default()
	}

	v := &validator{cfg: cfg, opts: opts}
	snap := v.run()

	var kept []Violation
	for _, viol := range v.violations {
		if errors.Is(viol.Err, ErrUnknownHandler) || errors.Is(viol.Err, ErrUnknownInstance) {
			continue
		}
		kept = append(kept, viol)
	}
	if len(kept) > 0 {
		return nil, &ValidationError{Violations: kept}
	}
	return snap, nil
}

// Validate runs every check of Build and discards the snapshot.
func Validate(cfg *schema.Config, opts Options) error {
	_, err := Build(cfg, opts)
	return err
}

type validator struct {
	cfg        *schema.Config
	opts       Options
	violations []Violation
}

func (v *validator) add(ref string, err error) {
	v.violations = append(v.violations, Violation{Ref: ref, Err: err})
}

func (v *validator) run() *Snapshot {
	registry := v.registerManifests()
	instances := v.compileInstances(registry)
	handlers := v.indexHandlers()
	index := v.compileRules(registry, instances, handlers)

	return &Snapshot{
		id:        uuid.New().String(),
		revision:  v.opts.Revision,
		createdAt: time.Now(),
		registry:  registry,
		rules:     index,
		instances: instances,
		handlers:  handlers,
	}
}

// registerManifests checks attribute grammar and uniqueness.
func (v *validator) registerManifests() *attribute.Registry {
	registry := attribute.NewRegistry()
	seen := make(map[string]int)

	for i, m := range v.cfg.Manifests {
		ref := fmt.Sprintf("manifests[%d]", i)
		if first, dup := seen[m.Name]; dup && m.Name != "" {
			v.add(ref+".name", fmt.Errorf("%w: manifest %q also declared by manifests[%d]", ErrDuplicateName, m.Name, first))
			continue
		}
		seen[m.Name] = i

		err := registry.Register(m)
		var nameErr *attribute.NameError
		var dupErr *attribute.DuplicateError
		switch {
		case err == nil:
		case errors.Is(err, attribute.ErrUnnamedManifest):
			v.add(ref+".name", err)
		case errors.As(err, &nameErr):
			for _, name := range nameErr.Names {
				v.add(fmt.Sprintf("%s.attributes[%q]", ref, name), attribute.ErrInvalidAttributeName)
			}
		case errors.As(err, &dupErr):
			v.add(fmt.Sprintf("%s.attributes[%q]", ref, dupErr.Name), err)
		default:
			v.add(ref, err)
		}
	}
	return registry
}

// compileInstances checks instance names, templates and params.
func (v *validator) compileInstances(registry *attribute.Registry) map[string]*instance.Definition {
	defs := make(map[string]*instance.Definition, len(v.cfg.Instances))
	seen := make(map[string]int)

	for i, inst := range v.cfg.Instances {
		ref := fmt.Sprintf("instances[%d]", i)
		switch first, dup := seen[inst.Name]; {
		case inst.Name == "":
			v.add(ref+".name", ErrEmptyName)
		case dup:
			v.add(ref+".name", fmt.Errorf("%w: instance %q also declared by instances[%d]", ErrDuplicateName, inst.Name, first))
			continue
		default:
			seen[inst.Name] = i
		}

		tmpl, ok := v.opts.Templates.Get(inst.Template)
		if !ok {
			v.add(ref+".template", fmt.Errorf("%w %q", ErrUnknownTemplate, inst.Template))
			continue
		}

		def, err := instance.Compile(inst, tmpl)
		if err != nil {
			var compileErr *instance.CompileError
			if errors.As(err, &compileErr) {
				for _, f := range compileErr.Fields {
					v.add(paramsRef(ref, f.Field), f.Err)
				}
			} else {
				v.add(ref+".params", err)
			}
			continue
		}

		if v.opts.StrictAttributes {
			exprs := def.Expressions()
			paths := make([]string, 0, len(exprs))
			for path := range exprs {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			for _, path := range paths {
				if _, err := expr.Check(exprs[path], registry); err != nil {
					v.add(paramsRef(ref, path), err)
				}
			}
		}

		if inst.Name != "" {
			defs[inst.Name] = def
		}
	}
	return defs
}

func paramsRef(ref, field string) string {
	if field == "" {
		return ref + ".params"
	}
	return ref + ".params." + field
}

// indexHandlers checks handler names and adapters.
func (v *validator) indexHandlers() map[string]*schema.Handler {
	handlers := make(map[string]*schema.Handler, len(v.cfg.Handlers))
	seen := make(map[string]int)

	for i := range v.cfg.Handlers {
		h := &v.cfg.Handlers[i]
		ref := fmt.Sprintf("handlers[%d]", i)
		switch first, dup := seen[h.Name]; {
		case h.Name == "":
			v.add(ref+".name", ErrEmptyName)
		case dup:
			v.add(ref+".name", fmt.Errorf("%w: handler %q also declared by handlers[%d]", ErrDuplicateName, h.Name, first))
			continue
		default:
			seen[h.Name] = i
			handlers[h.Name] = h
		}

		if v.opts.Adapters != nil && !v.opts.Adapters.Has(h.Adapter) {
			v.add(ref+".adapter", fmt.Errorf("%w %q", ErrUnknownAdapter, h.Adapter))
		}
	}
	return handlers
}

// compileRules checks match predicates and action references.
func (v *validator) compileRules(registry *attribute.Registry, instances map[string]*instance.Definition, handlers map[string]*schema.Handler) *rules.Index {
	valid := make([]schema.Rule, len(v.cfg.Rules))
	copy(valid, v.cfg.Rules)

	for i, r := range v.cfg.Rules {
		ref := fmt.Sprintf("rules[%d]", i)

		node, err := expr.Parse(r.Match)
		if err != nil {
			v.add(ref+".match", err)
			valid[i].Match = ""
		} else if v.opts.StrictAttributes {
			if err := expr.CheckPredicate(node, registry); err != nil {
				v.add(ref+".match", err)
			}
		}

		for j, a := range r.Actions {
			actionRef := fmt.Sprintf("%s.actions[%d]", ref, j)
			if _, ok := handlers[a.Handler]; !ok {
				v.add(actionRef+".handler", fmt.Errorf("%w %q", ErrUnknownHandler, a.Handler))
			}
			for k, name := range a.Instances {
				if _, ok := instances[name]; ok {
					continue
				}
				if v.declaresInstance(name) {
					// Already reported against the instance itself.
					continue
				}
				v.add(fmt.Sprintf("%s.instances[%d]", actionRef, k), fmt.Errorf("%w %q", ErrUnknownInstance, name))
			}
		}
	}

	// Rules that failed to parse were reported above and blanked so the
	// index can still be assembled for the pass.
	index, err := rules.Compile(valid)
	if err != nil {
		v.add("rules", err)
		return &rules.Index{}
	}
	return index
}

func (v *validator) declaresInstance(name string) bool {
	for _, inst := range v.cfg.Instances {
		if inst.Name == name && name != "" {
			return true
		}
	}
	return false
}
