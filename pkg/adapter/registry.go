package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/telemetry/health"
)

// Registry maps adapter names to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds a to the registry.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return errors.New("adapter cannot be nil")
	}
	name := a.Name()
	if name == "" {
		return errors.New("adapter name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("%w %q", ErrDuplicateAdapter, name)
	}
	r.adapters[name] = a

	r.logger.Debug("adapter registered", "adapter", name)
	return nil
}

// Get returns the named adapter.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAdapter, name)
	}
	return a, nil
}

// Has reports whether an adapter is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.adapters[name]
	return ok
}

// Names returns the sorted names of all registered adapters.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke routes one action to the adapter named by handler. The registry
// lock is not held while the adapter runs.
func (r *Registry) Invoke(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error {
	a, err := r.Get(handler.Adapter)
	if err != nil {
		return err
	}
	if err := a.Handle(ctx, handler, instances); err != nil {
		return &AdapterError{Adapter: a.Name(), Handler: handler.Name, Cause: err}
	}
	return nil
}

// RegisterHealthChecks registers one readiness check per adapter, named
// "adapter:<name>".
func (r *Registry) RegisterHealthChecks(checker *health.Checker) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, a := range r.adapters {
		checker.RegisterCheck("adapter:"+name, a.HealthCheck)
	}
}

// Close closes every adapter and returns the joined errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, a := range r.adapters {
		if err := a.Close(); err != nil {
			r.logger.Warn("failed to close adapter", "adapter", name, "error", err)
			errs = append(errs, fmt.Errorf("adapter %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
