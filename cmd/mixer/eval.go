package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/mixer/pkg/adapter/factory"
	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/cli"
	"mercator-hq/mixer/pkg/policy/dispatch"
	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/policy/source"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/telemetry/logging"
)

var evalFlags struct {
	policyPath string
	attrsFile  string
	set        []string
	format     string
	strict     bool
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Dry-run one request against a configuration",
	Long: `Evaluate an attribute bag against a configuration and print which
rules matched and which instances every handler would receive.

No handler is invoked. Attributes come from a JSON object file (--attrs,
"-" reads stdin) and from --set key=value flags, which take precedence.
A --set value is parsed as JSON when possible and taken as a string
otherwise.

Examples:
  # Evaluate two attributes against ./config
  mixer eval --policy ./config --set destination.service=ratings --set response.code=500

  # Evaluate a recorded bag, print JSON
  mixer eval --attrs request.json --format json`,
	RunE: runEvalCmd,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalFlags.policyPath, "policy", "p", "", "configuration path (uses config if not specified)")
	evalCmd.Flags().StringVar(&evalFlags.attrsFile, "attrs", "", "JSON file with request attributes (- for stdin)")
	evalCmd.Flags().StringArrayVar(&evalFlags.set, "set", nil, "set an attribute (key=value, repeatable)")
	evalCmd.Flags().StringVarP(&evalFlags.format, "format", "f", "text", "output format: text, json, yaml")
	evalCmd.Flags().BoolVar(&evalFlags.strict, "strict", true, "type-check expressions against declared attributes (uses config if not specified)")
}

func runEvalCmd(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evalFlags.format)
	if err != nil {
		return cli.WrapConfigError("format", err)
	}

	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}
	path := cfg.Policy.Path
	if evalFlags.policyPath != "" {
		path = evalFlags.policyPath
	}
	strict := cfg.Policy.Strict()
	if cmd.Flags().Changed("strict") {
		strict = evalFlags.strict
	}

	values, err := readAttributes(cmd.InOrStdin(), evalFlags.attrsFile, evalFlags.set)
	if err != nil {
		return cli.WrapConfigError("attrs", err)
	}

	logger := logging.Discard()
	if verbose {
		if logger, err = newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	return runEval(cmd.Context(), cmd.OutOrStdout(), path, values, strict, format, logger)
}

// readAttributes merges the attributes of a JSON object file with key=value
// assignments.
func readAttributes(stdin io.Reader, file string, sets []string) (map[string]interface{}, error) {
	values := make(map[string]interface{})

	if file != "" {
		var (
			data []byte
			err  error
		)
		if file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read attributes: %w", err)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("attributes must be a JSON object: %w", err)
		}
	}

	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --set %q (expected key=value)", kv)
		}
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[strings.TrimSpace(key)] = v
	}
	return values, nil
}

// delivery is what one handler would receive.
type delivery struct {
	Ref       string               `json:"ref"`
	Handler   string               `json:"handler"`
	Adapter   string               `json:"adapter"`
	Instances []*instance.Instance `json:"instances"`
}

// evalReport is the outcome of a dry-run dispatch.
type evalReport struct {
	SnapshotID string                 `json:"snapshot_id"`
	Revision   string                 `json:"revision,omitempty"`
	Attributes []string               `json:"attributes"`
	Rules      []int                  `json:"rules"`
	Deliveries []delivery             `json:"deliveries"`
	Errors     []dispatch.ActionError `json:"errors,omitempty"`
	Builds     int                    `json:"builds"`
}

// Text implements cli.Texter.
func (r *evalReport) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Snapshot %s", r.SnapshotID)
	if r.Revision != "" {
		fmt.Fprintf(&sb, " (revision %s)", r.Revision)
	}
	fmt.Fprintf(&sb, "\nAttributes: %s\n", strings.Join(r.Attributes, ", "))

	if len(r.Rules) == 0 {
		sb.WriteString("No rules matched\n")
	} else {
		rules := make([]string, len(r.Rules))
		for i, idx := range r.Rules {
			rules[i] = fmt.Sprintf("rules[%d]", idx)
		}
		fmt.Fprintf(&sb, "Matched: %s\n", strings.Join(rules, ", "))
	}

	for _, d := range r.Deliveries {
		fmt.Fprintf(&sb, "\n✓ %s -> %s (%s)\n", d.Ref, d.Handler, d.Adapter)
		for _, inst := range d.Instances {
			fmt.Fprintf(&sb, "    %s [%s] %s\n", inst.Name, inst.Template, inst.Fields.String())
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "\n✗ %s: %v\n", e.Ref, e.Cause)
	}
	fmt.Fprintf(&sb, "\n%d instances built\n", r.Builds)
	return sb.String()
}

// runEval dispatches values against the configuration at path with an
// invoker that records deliveries instead of calling adapters.
func runEval(ctx context.Context, w io.Writer, path string, values map[string]interface{}, strict bool, format cli.OutputFormat, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	bundle, err := source.NewFileSource(path, nil, logger).Load(ctx)
	if err != nil {
		var decErr *source.DecodeError
		var loadErr *source.LoadError
		if errors.As(err, &decErr) || errors.As(err, &loadErr) {
			return fmt.Errorf("%w: %v", cli.ErrInvalid, err)
		}
		return cli.NewCommandError("eval", err)
	}

	snap, err := snapshot.Build(bundle.Config, snapshot.Options{
		StrictAttributes: strict,
		Adapters:         factory.Known,
		Revision:         bundle.Revision,
	})
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidConfig) {
			return fmt.Errorf("%w: %v", cli.ErrInvalid, err)
		}
		return cli.NewCommandError("eval", err)
	}

	bag, err := attribute.NewBag(values)
	if err != nil {
		return cli.WrapConfigError("attrs", err)
	}

	var deliveries []delivery
	recorder := dispatch.InvokerFunc(func(_ context.Context, h *schema.Handler, instances []*instance.Instance) error {
		deliveries = append(deliveries, delivery{Handler: h.Name, Adapter: h.Adapter, Instances: instances})
		return nil
	})
	d, err := dispatch.New(recorder, nil, logger)
	if err != nil {
		return cli.NewCommandError("eval", err)
	}

	res, err := d.Dispatch(ctx, snap, bag)
	if err != nil {
		return cli.NewCommandError("eval", err)
	}
	for i, inv := range res.Invocations {
		deliveries[i].Ref = inv.Ref
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	report := &evalReport{
		SnapshotID: snap.ID(),
		Revision:   snap.Revision(),
		Attributes: names,
		Rules:      res.Rules,
		Deliveries: deliveries,
		Errors:     res.Errors,
		Builds:     res.Builds,
	}
	if err := cli.NewFormatter(format).FormatTo(w, report); err != nil {
		return cli.NewCommandError("eval", err)
	}
	return nil
}
