package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateAdapters(&cfg.Adapters)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError

	if s.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "field is required"})
	} else if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid address: %v", err)})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if s.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "must not be negative"})
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must not be negative"})
	}
	if s.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}

	return errs
}

func validatePolicy(p *PolicyConfig) []FieldError {
	var errs []FieldError

	if p.Path == "" {
		errs = append(errs, FieldError{Field: "policy.path", Message: "field is required"})
	}
	if p.Debounce < 0 {
		errs = append(errs, FieldError{Field: "policy.debounce", Message: "must not be negative"})
	}
	if p.DispatchTimeout < 0 {
		errs = append(errs, FieldError{Field: "policy.dispatch_timeout", Message: "must not be negative"})
	}
	if p.ResyncSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(p.ResyncSchedule); err != nil {
			errs = append(errs, FieldError{Field: "policy.resync_schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	if p.Git.Enabled {
		errs = append(errs, validateGit(&p.Git)...)
	}

	return errs
}

func validateGit(g *GitConfig) []FieldError {
	var errs []FieldError

	if g.Repository == "" {
		errs = append(errs, FieldError{Field: "policy.git.repository", Message: "field is required when git is enabled"})
	}
	if g.Branch == "" {
		errs = append(errs, FieldError{Field: "policy.git.branch", Message: "field is required when git is enabled"})
	}
	if g.Depth < 0 {
		errs = append(errs, FieldError{Field: "policy.git.depth", Message: "must not be negative"})
	}
	if g.Timeout < 0 {
		errs = append(errs, FieldError{Field: "policy.git.timeout", Message: "must not be negative"})
	}

	switch g.Auth.Type {
	case "none", "":
	case "token":
		if g.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.token", Message: "field is required for token auth"})
		}
	case "ssh":
		if g.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.ssh_key_path", Message: "field is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{Field: "policy.git.auth.type", Message: fmt.Sprintf("must be one of: token, ssh, none (got %q)", g.Auth.Type)})
	}

	return errs
}

func validateAdapters(a *AdaptersConfig) []FieldError {
	var errs []FieldError

	if a.SQLite.MaxOpenConns < 0 {
		errs = append(errs, FieldError{Field: "adapters.sqlite.max_open_conns", Message: "must not be negative"})
	}
	if a.SQLite.BusyTimeout < 0 {
		errs = append(errs, FieldError{Field: "adapters.sqlite.busy_timeout", Message: "must not be negative"})
	}
	if a.Redis.Address != "" {
		if _, _, err := net.SplitHostPort(a.Redis.Address); err != nil {
			errs = append(errs, FieldError{Field: "adapters.redis.address", Message: fmt.Sprintf("invalid address: %v", err)})
		}
	}
	if a.Redis.DB < 0 {
		errs = append(errs, FieldError{Field: "adapters.redis.db", Message: "must not be negative"})
	}

	return errs
}

func validateTelemetry(t *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(t.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", t.Logging.Level),
		})
	}

	switch strings.ToLower(t.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", t.Logging.Format),
		})
	}

	if t.Metrics.Enabled && !strings.HasPrefix(t.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	if t.Tracing.Enabled {
		switch t.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", t.Tracing.Sampler),
			})
		}
		if t.Tracing.SampleRatio < 0 || t.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
		}
		if t.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "field is required when tracing is enabled"})
		}
	}

	return errs
}
