package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/mixer/pkg/adapter/factory"
	"mercator-hq/mixer/pkg/cli"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/policy/source"
	"mercator-hq/mixer/pkg/telemetry/logging"
)

var validateFlags struct {
	format string
	strict bool
}

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate configuration files",
	Long: `Validate a configuration file or directory without activating it.

Every check runs and every violation is reported. Handler adapters are
checked by name only; no adapter is connected.

The path defaults to policy.path from the runtime configuration.

Exit codes:
  0  configuration is valid
  2  runtime configuration could not be loaded
  3  configuration is invalid

Examples:
  # Validate the configured path
  mixer validate

  # Validate a directory, report as JSON
  mixer validate ./deploy/config --format json

  # Allow references to undeclared attributes
  mixer validate ./deploy/config --strict=false`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateCmd,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.format, "format", "f", "text", "output format: text, json, yaml")
	validateCmd.Flags().BoolVar(&validateFlags.strict, "strict", true, "type-check expressions against declared attributes (uses config if not specified)")
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return cli.WrapConfigError("format", err)
	}

	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}
	path := cfg.Policy.Path
	if len(args) == 1 {
		path = args[0]
	}
	strict := cfg.Policy.Strict()
	if cmd.Flags().Changed("strict") {
		strict = validateFlags.strict
	}

	logger := logging.Discard()
	if verbose {
		if logger, err = newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	return runValidate(cmd.Context(), cmd.OutOrStdout(), path, strict, format, logger)
}

// problem is one reported violation.
type problem struct {
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

// validateReport is the outcome of validating one configuration path.
type validateReport struct {
	Path       string            `json:"path"`
	Valid      bool              `json:"valid"`
	Revision   string            `json:"revision,omitempty"`
	Files      []string          `json:"files,omitempty"`
	Summary    *snapshot.Summary `json:"summary,omitempty"`
	Violations []problem         `json:"violations,omitempty"`
}

// Text implements cli.Texter.
func (r *validateReport) Text() string {
	var sb strings.Builder
	if r.Valid {
		fmt.Fprintf(&sb, "✓ %s is valid (revision %s)\n", r.Path, r.Revision)
		fmt.Fprintf(&sb, "  Files:      %d\n", len(r.Files))
		fmt.Fprintf(&sb, "  Manifests:  %d\n", r.Summary.Manifests)
		fmt.Fprintf(&sb, "  Attributes: %d\n", r.Summary.Attributes)
		fmt.Fprintf(&sb, "  Rules:      %d\n", r.Summary.Rules)
		fmt.Fprintf(&sb, "  Instances:  %d\n", r.Summary.Instances)
		fmt.Fprintf(&sb, "  Handlers:   %d\n", r.Summary.Handlers)
		return sb.String()
	}

	fmt.Fprintf(&sb, "✗ %s is invalid (%d violations)\n", r.Path, len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(&sb, "  - %s: %s\n", v.Ref, v.Message)
	}
	return sb.String()
}

// runValidate loads and validates the configuration at path, writes the
// report to w and returns an error wrapping cli.ErrInvalid if the
// configuration was rejected.
func runValidate(ctx context.Context, w io.Writer, path string, strict bool, format cli.OutputFormat, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	report := &validateReport{Path: path}

	bundle, err := source.NewFileSource(path, nil, logger).Load(ctx)
	if err != nil {
		var decErr *source.DecodeError
		var loadErr *source.LoadError
		switch {
		case errors.As(err, &decErr):
			report.Violations = []problem{{Ref: decErr.Path, Message: decErr.Cause.Error()}}
		case errors.As(err, &loadErr):
			report.Violations = []problem{{Ref: loadErr.Path, Message: loadErr.Message}}
		default:
			return cli.NewCommandError("validate", err)
		}
		return finishValidate(w, report, format)
	}

	report.Revision = bundle.Revision
	report.Files = bundle.Files

	snap, err := snapshot.Build(bundle.Config, snapshot.Options{
		StrictAttributes: strict,
		Adapters:         factory.Known,
		Revision:         bundle.Revision,
	})
	if err != nil {
		var verr *snapshot.ValidationError
		if !errors.As(err, &verr) {
			return cli.NewCommandError("validate", err)
		}
		for _, v := range verr.Violations {
			report.Violations = append(report.Violations, problem{Ref: v.Ref, Message: v.Err.Error()})
		}
		return finishValidate(w, report, format)
	}

	summary := snap.Summary()
	report.Valid = true
	report.Summary = &summary
	return finishValidate(w, report, format)
}

func finishValidate(w io.Writer, report *validateReport, format cli.OutputFormat) error {
	if err := cli.NewFormatter(format).FormatTo(w, report); err != nil {
		return cli.NewCommandError("validate", err)
	}
	if !report.Valid {
		return fmt.Errorf("%s: %d violations: %w", report.Path, len(report.Violations), cli.ErrInvalid)
	}
	return nil
}
