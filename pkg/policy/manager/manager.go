package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/policy/source"
	"mercator-hq/mixer/pkg/telemetry/metrics"
	"mercator-hq/mixer/pkg/telemetry/tracing"
)

// Reload statuses, used as the status label of the reload metric.
const (
	StatusSuccess   = "success"
	StatusUnchanged = "unchanged"
	StatusLoadError = "load_error"
	StatusInvalid   = "invalid"
)

// Config configures a Manager.
type Config struct {
	// Source provides the configuration. Required.
	Source source.Source

	// Store receives activated snapshots. Default: a new store.
	Store *snapshot.Store

	// Options are passed to snapshot.Build. Revision is overwritten with
	// the revision of each loaded bundle.
	Options snapshot.Options

	// Watch enables reloads on file changes. Nil disables watching.
	Watch *source.WatcherConfig

	// ResyncSchedule is a cron expression for periodic reloads. Empty
	// disables them.
	ResyncSchedule string

	// OnActivate is called after a new snapshot is activated, with the
	// previously active snapshot (nil on the first activation).
	OnActivate func(prev, next *snapshot.Snapshot)

	// Metrics records reload metrics. May be nil.
	Metrics *metrics.Collector

	// Tracer records one span per reload. May be nil.
	Tracer *tracing.Tracer
}

// Status describes the reload history of a manager.
type Status struct {
	Source        string    `json:"source"`
	Revision      string    `json:"revision,omitempty"`
	SnapshotID    string    `json:"snapshot_id,omitempty"`
	LastReload    time.Time `json:"last_reload"`
	LastSuccess   time.Time `json:"last_success"`
	LastError     string    `json:"last_error,omitempty"`
	Reloads       int       `json:"reloads"`
	Failures      int       `json:"failures"`
	Watching      bool      `json:"watching"`
	ResyncEnabled bool      `json:"resync_enabled"`
}

// Manager loads, validates and activates configuration snapshots.
type Manager struct {
	source     source.Source
	store      *snapshot.Store
	opts       snapshot.Options
	onActivate func(prev, next *snapshot.Snapshot)
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	logger     *slog.Logger

	watchConfig *source.WatcherConfig
	schedule    string

	// reloadMu serializes reloads.
	reloadMu sync.Mutex

	mu          sync.RWMutex
	lastReload  time.Time
	lastSuccess time.Time
	lastErr     error
	reloads     int
	failures    int

	started bool
	cancel  context.CancelFunc
	watcher *source.Watcher
	resync  *source.Resync
	wg      sync.WaitGroup
}

// New creates a manager. Nothing is loaded until Reload or Start.
func New(cfg *Config, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store := cfg.Store
	if store == nil {
		store = snapshot.NewStore()
	}

	return &Manager{
		source:      cfg.Source,
		store:       store,
		opts:        cfg.Options,
		onActivate:  cfg.OnActivate,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		logger:      logger.With("component", "policy.manager"),
		watchConfig: cfg.Watch,
		schedule:    cfg.ResyncSchedule,
	}, nil
}

// Store returns the store the manager activates snapshots in.
func (m *Manager) Store() *snapshot.Store {
	return m.store
}

// Current returns the active snapshot, or nil before the first successful
// reload.
func (m *Manager) Current() *snapshot.Snapshot {
	return m.store.Load()
}

// Reload loads and validates the configuration and activates it. On failure
// the previous snapshot stays active and a *ReloadError is returned. When
// the loaded content has the revision of the active snapshot nothing is
// rebuilt and the active snapshot is returned.
func (m *Manager) Reload(ctx context.Context) (*snapshot.Snapshot, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	start := time.Now()
	ctx, span := m.tracer.Start(ctx, tracing.SpanReload)
	defer span.End()

	snap, status, err := m.reload(ctx)
	duration := time.Since(start)

	revision := ""
	if snap != nil {
		revision = snap.Revision()
	}
	tracing.SetReloadAttributes(span, m.source.String(), status, revision)
	tracing.SetStatus(span, err)
	m.metrics.RecordReload(status, duration)
	m.record(start, err)

	if err != nil {
		m.logger.Error("reload rejected, keeping previous snapshot",
			"source", m.source.String(),
			"status", status,
			"has_previous", m.store.Load() != nil,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}
	return snap, nil
}

func (m *Manager) reload(ctx context.Context) (*snapshot.Snapshot, string, error) {
	bundle, err := m.source.Load(ctx)
	if err != nil {
		return nil, StatusLoadError, &ReloadError{Stage: StageLoad, Source: m.source.String(), Cause: err}
	}

	current := m.store.Load()
	if current != nil && bundle.Revision != "" && current.Revision() == bundle.Revision {
		m.logger.Debug("configuration unchanged", "revision", bundle.Revision)
		return current, StatusUnchanged, nil
	}

	opts := m.opts
	opts.Revision = bundle.Revision
	snap, err := snapshot.Build(bundle.Config, opts)
	if err != nil {
		return nil, StatusInvalid, &ReloadError{Stage: StageValidate, Source: m.source.String(), Cause: err}
	}

	prev := m.store.Swap(snap)

	sum := snap.Summary()
	m.metrics.SetSnapshot(sum.Rules, sum.Instances, sum.Handlers, sum.Attributes)
	m.logger.Info("snapshot activated",
		"snapshot_id", sum.ID,
		"revision", sum.Revision,
		"files", len(bundle.Files),
		"rules", sum.Rules,
		"instances", sum.Instances,
		"handlers", sum.Handlers,
		"attributes", sum.Attributes,
	)

	if m.onActivate != nil {
		m.onActivate(prev, snap)
	}
	return snap, StatusSuccess, nil
}

func (m *Manager) record(at time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reloads++
	m.lastReload = at
	m.lastErr = err
	if err != nil {
		m.failures++
	} else {
		m.lastSuccess = at
	}
}

// LastError returns the error of the most recent reload, or nil if it
// succeeded.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Status returns the reload history.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Source:        m.source.String(),
		LastReload:    m.lastReload,
		LastSuccess:   m.lastSuccess,
		Reloads:       m.reloads,
		Failures:      m.failures,
		Watching:      m.watcher != nil,
		ResyncEnabled: m.resync != nil,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	if snap := m.store.Load(); snap != nil {
		st.Revision = snap.Revision()
		st.SnapshotID = snap.ID()
	}
	return st
}

// Start performs the initial reload, which must succeed, then starts the
// watcher and the resync schedule if configured. They run until Stop is
// called or ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	if _, err := m.Reload(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	if m.watchConfig != nil {
		w, err := source.NewWatcher(m.watchConfig, m.logger)
		if err != nil {
			cancel()
			return err
		}
		m.watcher = w
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := w.Watch(runCtx, m.reloadQuietly); err != nil {
				m.logger.Error("file watcher exited", "error", err)
			}
		}()
	}

	if m.schedule != "" {
		r, err := source.NewResync(m.schedule, m.reloadQuietly, m.logger)
		if err == nil {
			err = r.Start(runCtx)
		}
		if err != nil {
			cancel()
			if m.watcher != nil {
				_ = m.watcher.Stop()
				m.watcher = nil
			}
			return err
		}
		m.resync = r
	}

	m.cancel = cancel
	m.started = true
	m.logger.Info("manager started",
		"source", m.source.String(),
		"watch", m.watcher != nil,
		"resync_schedule", m.schedule,
	)
	return nil
}

// reloadQuietly reloads and discards the snapshot. Failures are already
// logged and recorded by Reload.
func (m *Manager) reloadQuietly(ctx context.Context) error {
	_, err := m.Reload(ctx)
	return err
}

// Stop stops the watcher and the resync schedule. The active snapshot is
// kept.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.started = false
	cancel, watcher, resync := m.cancel, m.watcher, m.resync
	m.cancel, m.watcher, m.resync = nil, nil, nil
	m.mu.Unlock()

	cancel()
	var err error
	if watcher != nil {
		err = watcher.Stop()
	}
	if resync != nil {
		resync.Stop()
	}
	m.wg.Wait()

	m.logger.Info("manager stopped")
	return err
}
