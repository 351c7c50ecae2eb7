// Package config provides runtime configuration for the mixer.
//
// Configuration is loaded from a YAML file, completed with defaults,
// overridden from MIXER_* environment variables and then validated. Every
// validation problem is reported at once:
//
//	configuration validation failed with 2 errors:
//	  - server.listen_address: field is required
//	  - policy.debounce: must not be negative
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MIXER_SECTION_FIELD:
//
//   - MIXER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - MIXER_POLICY_PATH overrides policy.path
//   - MIXER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:9091"
//
//	policy:
//	  path: "./config"
//	  watch: true
//	  resync_schedule: "@every 5m"
//
//	adapters:
//	  sqlite:
//	    path: "data/invocations.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// The loaded *Config is passed explicitly to the components that need it.
package config
