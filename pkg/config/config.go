package config

import "time"

// Config is the root runtime configuration.
type Config struct {
	// Server configures the HTTP check surface.
	Server ServerConfig `yaml:"server"`

	// Policy configures where rules, instances and handlers are loaded from
	// and how snapshots are built.
	Policy PolicyConfig `yaml:"policy"`

	// Adapters configures the built-in handler adapters.
	Adapters AdaptersConfig `yaml:"adapters"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address to listen on.
	// Default: "127.0.0.1:9091"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of a check request body.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// PolicyConfig contains configuration for loading and activating
// configuration snapshots.
type PolicyConfig struct {
	// Path is a file or directory holding YAML or JSON configuration.
	// Default: "./config"
	Path string `yaml:"path"`

	// Watch enables reloading when files under Path change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce delays a reload until changes settle.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// ResyncSchedule is a cron expression triggering a periodic full reload.
	// Empty disables periodic reloads.
	ResyncSchedule string `yaml:"resync_schedule"`

	// StrictAttributes type-checks expressions against declared attributes.
	// Default: true
	StrictAttributes *bool `yaml:"strict_attributes"`

	// DispatchTimeout bounds the dispatch of one request. Zero disables it.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`

	// Git, when enabled, loads the configuration from a Git repository
	// checkout instead of Path.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures loading configuration from a Git repository.
type GitConfig struct {
	// Enabled determines if Git mode is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository URL (HTTPS, SSH or a local path).
	// Example: "https://github.com/company/mixer-config.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository holding configuration files.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "<tmp>/mixer-config"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history. Zero clones the full history.
	Depth int `yaml:"depth"`

	// Timeout bounds one clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	// Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	// Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// Strict reports whether strict attribute checking is enabled.
func (p PolicyConfig) Strict() bool {
	return p.StrictAttributes == nil || *p.StrictAttributes
}

// AdaptersConfig contains configuration for the built-in adapters.
type AdaptersConfig struct {
	// SQLite configures the sqlite invocation sink.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis configures the redis list sink.
	Redis RedisConfig `yaml:"redis"`
}

// SQLiteConfig configures the sqlite adapter.
type SQLiteConfig struct {
	// Path is the database file. Empty disables the adapter.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig configures the redis adapter.
type RedisConfig struct {
	// Address is host:port of the redis server. Empty disables the adapter.
	Address string `yaml:"address"`

	// Password for AUTH, if any.
	Password string `yaml:"password"`

	// DB selects the logical database.
	DB int `yaml:"db"`

	// KeyPrefix is prepended to every list key.
	// Default: "mixer:"
	KeyPrefix string `yaml:"key_prefix"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mixer"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	Subsystem string `yaml:"subsystem"`

	// DispatchDurationBuckets defines histogram buckets for dispatch
	// duration in seconds.
	DispatchDurationBuckets []float64 `yaml:"dispatch_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure *bool `yaml:"insecure"`

	// ServiceName is the service name in traces.
	// Default: "mixer"
	ServiceName string `yaml:"service_name"`
}
