package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/mixer/pkg/cli"
	"mercator-hq/mixer/pkg/config"
	"mercator-hq/mixer/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mixer",
	Short: "Mixer - policy and telemetry resolution engine",
	Long: `Mixer evaluates request attributes against a declarative configuration
of manifests, rules, instances and handlers.

For every request it:
  - Selects the rules whose match expression holds
  - Builds the instances referenced by their actions
  - Dispatches the instances to the configured handlers

Configuration is validated as a whole and activated atomically. A rejected
configuration never replaces the active one.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "runtime config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadRuntimeConfig loads the runtime configuration named by --config with
// MIXER_* environment overrides applied.
func loadRuntimeConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.WrapConfigError("", err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.FromConfig(cfg, w))
	if err != nil {
		return nil, cli.WrapConfigError("telemetry.logging", err)
	}
	return logger, nil
}
