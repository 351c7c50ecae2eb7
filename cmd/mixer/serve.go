package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/mixer/pkg/adapter/factory"
	"mercator-hq/mixer/pkg/cli"
	"mercator-hq/mixer/pkg/config"
	"mercator-hq/mixer/pkg/policy/dispatch"
	"mercator-hq/mixer/pkg/policy/engine"
	"mercator-hq/mixer/pkg/policy/git"
	"mercator-hq/mixer/pkg/policy/manager"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/policy/source"
	"mercator-hq/mixer/pkg/server"
	"mercator-hq/mixer/pkg/telemetry/metrics"
	"mercator-hq/mixer/pkg/telemetry/tracing"
)

var serveFlags struct {
	listenAddress string
	policyPath    string
	logLevel      string
	watch         bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the check server",
	Long: `Start the HTTP check server with the specified configuration.

The server loads the configuration under policy.path, activates it as the
first snapshot and serves POST /v1/check until interrupted. With
policy.watch enabled, edits are validated and activated as they happen.

Examples:
  # Start with defaults
  mixer serve

  # Start with a runtime config file
  mixer serve --config /etc/mixer/mixer.yaml

  # Override listen address and configuration path
  mixer serve --listen 0.0.0.0:9091 --policy ./deploy/config --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVarP(&serveFlags.policyPath, "policy", "p", "", "override configuration path")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.watch, "watch", false, "reload when configuration files change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.policyPath != "" {
		cfg.Policy.Path = serveFlags.policyPath
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if cmd.Flags().Changed("watch") {
		cfg.Policy.Watch = serveFlags.watch
	}
	if err := config.Validate(cfg); err != nil {
		return cli.WrapConfigError("", err)
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	return serve(ctx, cmd, cfg)
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mixer v%s\n", Version)

	logger, err := newLogger(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.WrapConfigError("telemetry.tracing", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	adapters, err := factory.NewRegistry(cfg.Adapters, factory.Options{
		Registerer: collector.Registry(),
		Logger:     logger,
	})
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to initialize adapters: %w", err))
	}
	fmt.Fprintf(out, "✓ Adapters initialized (%s)\n", strings.Join(adapters.Names(), ", "))

	src, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	store := snapshot.NewStore()
	mgrCfg := &manager.Config{
		Source: src,
		Store:  store,
		Options: snapshot.Options{
			StrictAttributes: cfg.Policy.Strict(),
			Adapters:         adapters,
		},
		ResyncSchedule: cfg.Policy.ResyncSchedule,
		Metrics:        collector,
		Tracer:         tracer,
	}
	watching := cfg.Policy.Watch && !cfg.Policy.Git.Enabled
	if watching {
		mgrCfg.Watch = &source.WatcherConfig{
			Path:       cfg.Policy.Path,
			Debounce:   cfg.Policy.Debounce,
			SkipHidden: true,
		}
	}
	mgr, err := manager.New(mgrCfg, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	eng, err := engine.New(&engine.Config{
		Store:    store,
		Adapters: adapters,
		Dispatch: &dispatch.Config{
			Timeout: cfg.Policy.DispatchTimeout,
			Metrics: collector,
			Tracer:  tracer,
		},
	}, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer eng.Close()

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to activate configuration from %s: %w", src, err)
	}
	defer mgr.Stop()

	summary := eng.Snapshot().Summary()
	fmt.Fprintf(out, "✓ Snapshot %s active (%d rules, %d instances, %d handlers)\n",
		summary.ID, summary.Rules, summary.Instances, summary.Handlers)
	if watching {
		fmt.Fprintf(out, "✓ Watching %s\n", cfg.Policy.Path)
	}
	if cfg.Policy.ResyncSchedule != "" {
		fmt.Fprintf(out, "✓ Resync scheduled (%s)\n", cfg.Policy.ResyncSchedule)
	}

	opts := server.Options{
		Config:  &cfg.Server,
		Engine:  eng,
		Manager: mgr,
		Tracer:  tracer,
		Version: versionInfo(),
	}
	if cfg.Telemetry.Metrics.Enabled {
		opts.Metrics = collector
		opts.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	srv, err := server.New(opts, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Check endpoint: http://%s/v1/check\n", cfg.Server.ListenAddress)
	if opts.Metrics != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// newSource returns the configuration source selected by cfg.Policy.
func newSource(cfg *config.Config, logger *slog.Logger) (source.Source, error) {
	if !cfg.Policy.Git.Enabled {
		return source.NewFileSource(cfg.Policy.Path, nil, logger), nil
	}
	if cfg.Policy.Watch {
		logger.Warn("policy.watch is ignored for git sources, use policy.resync_schedule")
	}
	repo, err := git.NewRepository(&cfg.Policy.Git, logger)
	if err != nil {
		return nil, cli.WrapConfigError("policy.git", err)
	}
	return git.NewSource(repo, nil, logger), nil
}
