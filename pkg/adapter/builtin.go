package adapter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/telemetry/logging"
)

// Names of the built-in adapters.
const (
	NoopName   = "noop"
	LogName    = "log"
	MemoryName = "memory"
)

// Noop discards every invocation.
type Noop struct{}

// NewNoop returns the noop adapter.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) Name() string { return NoopName }

func (*Noop) Handle(context.Context, *schema.Handler, []*instance.Instance) error { return nil }

func (*Noop) HealthCheck(context.Context) error { return nil }

func (*Noop) Close() error { return nil }

// Log writes one record per instance to a structured logger. Field values
// under sensitive keys are redacted.
//
// Handler params:
//   - level: debug, info (default), warn or error
type Log struct {
	logger   *slog.Logger
	redactor *logging.Redactor
}

// NewLog creates a log adapter writing to logger.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, redactor: logging.NewRedactor()}
}

func (l *Log) Name() string { return LogName }

func (l *Log) Handle(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error {
	level, err := logging.ParseLevel(StringParam(handler, "level", "info"))
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx, l.logger)
	for _, rec := range NewRecords(handler, instances, time.Now()) {
		logger.Log(ctx, level, "instance",
			"handler", rec.Handler,
			"instance", rec.Instance,
			"template", rec.Template,
			"fields", l.redactor.RedactMap(rec.Fields),
		)
	}
	return nil
}

func (l *Log) HealthCheck(context.Context) error { return nil }

func (l *Log) Close() error { return nil }

// Invocation is one call received by the Memory adapter.
type Invocation struct {
	Handler   string
	Instances []*instance.Instance
}

// Memory keeps every invocation in memory.
type Memory struct {
	mu          sync.Mutex
	invocations []Invocation
	closed      bool
}

// NewMemory creates an empty memory adapter.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return MemoryName }

func (m *Memory) Handle(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.invocations = append(m.invocations, Invocation{
		Handler:   handler.Name,
		Instances: append([]*instance.Instance(nil), instances...),
	})
	return nil
}

// Invocations returns a copy of the recorded invocations in arrival order.
func (m *Memory) Invocations() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Invocation(nil), m.invocations...)
}

// Reset drops the recorded invocations.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invocations = nil
}

func (m *Memory) HealthCheck(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
