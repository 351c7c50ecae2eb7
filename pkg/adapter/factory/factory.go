// Package factory assembles the adapter registry from runtime
// configuration.
package factory

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"mercator-hq/mixer/pkg/adapter"
	promadapter "mercator-hq/mixer/pkg/adapter/prometheus"
	"mercator-hq/mixer/pkg/adapter/redis"
	"mercator-hq/mixer/pkg/adapter/sqlite"
	"mercator-hq/mixer/pkg/config"
)

// Options carries the process-wide dependencies adapters need.
type Options struct {
	// Registerer receives the metrics of the prometheus adapter.
	// Default: a private registry.
	Registerer prometheus.Registerer

	// Namespace prefixes metrics of the prometheus adapter.
	Namespace string

	// Logger is used by the log adapter and the registry.
	Logger *slog.Logger
}

// NewRegistry creates a registry holding the built-in adapters plus every
// external adapter enabled in cfg:
//   - noop, log, memory, prometheus: always
//   - sqlite: when cfg.SQLite.Path is set
//   - redis: when cfg.Redis.Address is set
//
// On failure every adapter created so far is closed.
func NewRegistry(cfg config.AdaptersConfig, opts Options) (*adapter.Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := adapter.NewRegistry(logger)
	adapters := []adapter.Adapter{
		adapter.NewNoop(),
		adapter.NewLog(logger),
		adapter.NewMemory(),
		promadapter.New(opts.Registerer, opts.Namespace),
	}

	if cfg.SQLite.Path != "" {
		a, err := sqlite.New(sqlite.Config{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			closeAll(adapters)
			return nil, fmt.Errorf("failed to create sqlite adapter: %w", err)
		}
		adapters = append(adapters, a)
	}

	if cfg.Redis.Address != "" {
		a, err := redis.New(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.KeyPrefix)
		if err != nil {
			closeAll(adapters)
			return nil, fmt.Errorf("failed to create redis adapter: %w", err)
		}
		adapters = append(adapters, a)
	}

	for _, a := range adapters {
		if err := reg.Register(a); err != nil {
			closeAll(adapters)
			return nil, err
		}
	}

	logger.Info("adapters initialized", "adapters", reg.Names())
	return reg, nil
}

func closeAll(adapters []adapter.Adapter) {
	for _, a := range adapters {
		_ = a.Close()
	}
}

// Names is a set of adapter names. It satisfies snapshot.AdapterFinder.
type Names []string

// Has reports whether name is in n.
func (n Names) Has(name string) bool {
	for _, s := range n {
		if s == name {
			return true
		}
	}
	return false
}

// Known lists every adapter this package can create, whether or not it is
// enabled. It lets configuration be checked without connecting anywhere.
var Known = Names{
	adapter.NoopName,
	adapter.LogName,
	adapter.MemoryName,
	promadapter.Name,
	sqlite.Name,
	redis.Name,
}
