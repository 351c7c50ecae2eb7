package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Resync runs a reload on a cron schedule.
type Resync struct {
	schedule string
	fn       func(context.Context) error
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewResync creates a resync for schedule, a standard five-field cron
// expression or a descriptor such as "@every 5m".
func NewResync(schedule string, fn func(context.Context) error, logger *slog.Logger) (*Resync, error) {
	if fn == nil {
		return nil, fmt.Errorf("resync function cannot be nil")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resync{
		schedule: schedule,
		fn:       fn,
		cron:     cron.New(),
		logger:   logger.With("component", "source.resync"),
	}, nil
}

// Start schedules the reload. The schedule stops when ctx is done.
func (r *Resync) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if _, err := r.cron.AddFunc(r.schedule, func() { r.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule resync: %w", err)
	}
	r.cron.Start()
	r.running = true

	r.logger.Info("resync scheduler started", "schedule", r.schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

func (r *Resync) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r.logger.Debug("scheduled resync starting")
	if err := r.fn(ctx); err != nil {
		r.logger.Error("scheduled resync failed", "error", err)
	}
}

// Stop stops the schedule and waits for a running reload to finish.
func (r *Resync) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("resync scheduler stopped")
}

// NextRun returns the next scheduled reload, or the zero time when stopped.
func (r *Resync) NextRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return time.Time{}
	}
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
