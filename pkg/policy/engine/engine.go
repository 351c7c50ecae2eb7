package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/mixer/pkg/adapter"
	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/policy/dispatch"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/telemetry/health"
)

// Config configures an Engine.
type Config struct {
	// Store holds the active snapshot. Required.
	Store *snapshot.Store

	// Adapters serves handler invocations. Required.
	Adapters *adapter.Registry

	// Dispatch configures the dispatcher. May be nil.
	Dispatch *dispatch.Config
}

// Engine evaluates requests against the active snapshot.
type Engine struct {
	store      *snapshot.Store
	adapters   *adapter.Registry
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// New creates an engine.
func New(cfg *Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Adapters == nil {
		return nil, errors.New("adapter registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	d, err := dispatch.New(cfg.Adapters, cfg.Dispatch, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	return &Engine{
		store:      cfg.Store,
		adapters:   cfg.Adapters,
		dispatcher: d,
		logger:     logger,
	}, nil
}

// Snapshot returns the active snapshot, or nil if none is active.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	return e.store.Load()
}

// Check dispatches bag against the active snapshot. It fails with
// dispatch.ErrNoSnapshot until a snapshot has been activated.
func (e *Engine) Check(ctx context.Context, bag attribute.Bag) (*dispatch.Result, error) {
	return e.dispatcher.Dispatch(ctx, e.store.Load(), bag)
}

// CheckValues converts values to an attribute bag and dispatches it.
func (e *Engine) CheckValues(ctx context.Context, values map[string]interface{}) (*dispatch.Result, error) {
	bag, err := attribute.NewBag(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttributes, err)
	}
	return e.Check(ctx, bag)
}

// Ready reports whether a snapshot is active.
func (e *Engine) Ready() bool {
	return e.store.Load() != nil
}

// RegisterHealthChecks registers a "snapshot" readiness check and one check
// per adapter.
func (e *Engine) RegisterHealthChecks(checker *health.Checker) {
	checker.RegisterCheck("snapshot", func(ctx context.Context) error {
		if !e.Ready() {
			return dispatch.ErrNoSnapshot
		}
		return nil
	})
	e.adapters.RegisterHealthChecks(checker)
}

// Close releases the adapters.
func (e *Engine) Close() error {
	return e.adapters.Close()
}
