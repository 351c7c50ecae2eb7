package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MIXER_SECTION_FIELD (e.g., MIXER_SERVER_LISTEN_ADDRESS) and
// always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
//
// An empty path skips the file and starts from defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefault()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that do not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("MIXER_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("MIXER_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("MIXER_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("MIXER_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("MIXER_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Policy overrides
	envString("MIXER_POLICY_PATH", &cfg.Policy.Path)
	envBool("MIXER_POLICY_WATCH", &cfg.Policy.Watch)
	envDuration("MIXER_POLICY_DEBOUNCE", &cfg.Policy.Debounce)
	envString("MIXER_POLICY_RESYNC_SCHEDULE", &cfg.Policy.ResyncSchedule)
	envDuration("MIXER_POLICY_DISPATCH_TIMEOUT", &cfg.Policy.DispatchTimeout)
	envBool("MIXER_POLICY_GIT_ENABLED", &cfg.Policy.Git.Enabled)
	envString("MIXER_POLICY_GIT_REPOSITORY", &cfg.Policy.Git.Repository)
	envString("MIXER_POLICY_GIT_BRANCH", &cfg.Policy.Git.Branch)
	envString("MIXER_POLICY_GIT_AUTH_TOKEN", &cfg.Policy.Git.Auth.Token)
	if val := os.Getenv("MIXER_POLICY_STRICT_ATTRIBUTES"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Policy.StrictAttributes = &b
		}
	}

	// Adapter overrides
	envString("MIXER_ADAPTERS_SQLITE_PATH", &cfg.Adapters.SQLite.Path)
	envString("MIXER_ADAPTERS_REDIS_ADDRESS", &cfg.Adapters.Redis.Address)
	envString("MIXER_ADAPTERS_REDIS_PASSWORD", &cfg.Adapters.Redis.Password)
	if val := os.Getenv("MIXER_ADAPTERS_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Adapters.Redis.DB = i
		}
	}

	// Telemetry overrides
	envString("MIXER_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("MIXER_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("MIXER_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("MIXER_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("MIXER_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("MIXER_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
