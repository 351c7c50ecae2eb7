package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixer.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9091"
  read_timeout: "5s"

policy:
  path: "/etc/mixer"
  watch: true
  debounce: "250ms"
  resync_schedule: "@every 5m"
  strict_attributes: false

adapters:
  redis:
    address: "localhost:6379"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9091" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9091", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected read timeout 5s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
	if !cfg.Policy.Watch || cfg.Policy.Debounce != 250*time.Millisecond {
		t.Errorf("unexpected policy config %+v", cfg.Policy)
	}
	if cfg.Policy.Strict() {
		t.Error("expected strict attributes to be disabled")
	}
	if cfg.Adapters.Redis.KeyPrefix != DefaultRedisKeyPrefix {
		t.Errorf("expected default key prefix, got %q", cfg.Adapters.Redis.KeyPrefix)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeConfig(t, "server: [unterminated")
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
	if !cfg.Policy.Strict() {
		t.Error("expected strict attributes by default")
	}
	if cfg.Policy.Path != DefaultPolicyPath {
		t.Errorf("expected policy path %q, got %q", DefaultPolicyPath, cfg.Policy.Path)
	}
	if cfg.Telemetry.Tracing.Insecure == nil || !*cfg.Telemetry.Tracing.Insecure {
		t.Error("expected insecure tracing transport by default")
	}
	if cfg.Policy.Git.Branch != DefaultGitBranch || cfg.Policy.Git.Auth.Type != DefaultGitAuthType {
		t.Errorf("unexpected git defaults: %+v", cfg.Policy.Git)
	}

	// ApplyDefaults is idempotent.
	before := *cfg
	ApplyDefaults(cfg)
	if cfg.Server != before.Server || cfg.Policy.Path != before.Policy.Path {
		t.Error("ApplyDefaults changed an already defaulted configuration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:       "bad listen address",
			mutate:     func(c *Config) { c.Server.ListenAddress = "nope" },
			wantFields: []string{"server.listen_address"},
		},
		{
			name:       "negative debounce",
			mutate:     func(c *Config) { c.Policy.Debounce = -time.Second },
			wantFields: []string{"policy.debounce"},
		},
		{
			name:       "bad cron",
			mutate:     func(c *Config) { c.Policy.ResyncSchedule = "every day" },
			wantFields: []string{"policy.resync_schedule"},
		},
		{
			name:   "git disabled ignores git fields",
			mutate: func(c *Config) { c.Policy.Git.Auth.Type = "kerberos" },
		},
		{
			name: "git enabled without repository",
			mutate: func(c *Config) {
				c.Policy.Git.Enabled = true
			},
			wantFields: []string{"policy.git.repository"},
		},
		{
			name: "git auth",
			mutate: func(c *Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.Repository = "https://example.com/config.git"
				c.Policy.Git.Auth.Type = "token"
			},
			wantFields: []string{"policy.git.auth.token"},
		},
		{
			name: "git unknown auth type",
			mutate: func(c *Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.Repository = "https://example.com/config.git"
				c.Policy.Git.Auth.Type = "kerberos"
			},
			wantFields: []string{"policy.git.auth.type"},
		},
		{
			name:       "bad redis address",
			mutate:     func(c *Config) { c.Adapters.Redis.Address = "localhost" },
			wantFields: []string{"adapters.redis.address"},
		},
		{
			name: "multiple telemetry errors",
			mutate: func(c *Config) {
				c.Telemetry.Logging.Level = "verbose"
				c.Telemetry.Logging.Format = "xml"
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.SampleRatio = 2
			},
			wantFields: []string{"telemetry.logging.level", "telemetry.logging.format", "telemetry.tracing.sample_ratio"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)

			err := Validate(cfg)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Errors) != len(tt.wantFields) {
				t.Fatalf("expected %d errors, got %d: %v", len(tt.wantFields), len(verr.Errors), err)
			}
			for i, field := range tt.wantFields {
				if verr.Errors[i].Field != field {
					t.Errorf("error %d: expected field %q, got %q", i, field, verr.Errors[i].Field)
				}
			}
			if len(tt.wantFields) > 1 && !strings.Contains(err.Error(), "errors:") {
				t.Errorf("expected aggregated message, got %q", err.Error())
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:9091"
policy:
  path: "./config"
`)

	t.Setenv("MIXER_SERVER_LISTEN_ADDRESS", "0.0.0.0:8000")
	t.Setenv("MIXER_POLICY_WATCH", "true")
	t.Setenv("MIXER_POLICY_STRICT_ATTRIBUTES", "false")
	t.Setenv("MIXER_POLICY_DISPATCH_TIMEOUT", "2s")
	t.Setenv("MIXER_ADAPTERS_REDIS_DB", "3")
	t.Setenv("MIXER_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("MIXER_SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:8000" {
		t.Errorf("expected overridden listen address, got %q", cfg.Server.ListenAddress)
	}
	if !cfg.Policy.Watch || cfg.Policy.Strict() {
		t.Errorf("expected watch on and strict off, got %+v", cfg.Policy)
	}
	if cfg.Policy.DispatchTimeout != 2*time.Second {
		t.Errorf("expected dispatch timeout 2s, got %v", cfg.Policy.DispatchTimeout)
	}
	if cfg.Adapters.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.Adapters.Redis.DB)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("invalid override should be ignored, got %v", cfg.Server.ReadTimeout)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("MIXER_TELEMETRY_LOGGING_FORMAT", "xml")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Error("expected validation error after override")
	}
}
