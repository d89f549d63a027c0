package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/milestone/internal/clock"
	"github.com/roach88/milestone/internal/compiler"
	"github.com/roach88/milestone/internal/generator"
	"github.com/roach88/milestone/internal/planner"
	"github.com/roach88/milestone/internal/sqlgen"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Ingestion    string
	Dialect      string
	BatchTime    string
	EmptyBatch   bool
	Placeholders []string
	Output       string
}

// PlanResult is the generated SQL of one ingestion: one batch per split
// range, or a single batch without splits.
type PlanResult struct {
	Ingestion string                       `json:"ingestion"`
	Dialect   string                       `json:"dialect"`
	Batches   []*generator.GeneratorResult `json:"batches"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <path>...",
		Short: "Print the SQL an ingestion would run",
		Long: `Compile ingest definitions and print the ordered SQL for each one,
grouped by phase, without touching a database.

Without --ingestion every definition is planned, producers first.

Examples:
  milestone plan ./ingest
  milestone plan ./ingest --ingestion customers --dialect postgres
  milestone plan customers.cue --batch-time "2024-01-01 00:00:00" --format json
  milestone plan customers.cue --placeholder "{BATCH_ID}=7" -o plan.sql`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ingestion, "ingestion", "", "plan only this ingest definition")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", sqlgen.SinkANSI, fmt.Sprintf("SQL dialect (%s)", strings.Join(sqlgen.SinkNames(), "|")))
	cmd.Flags().StringVar(&opts.BatchTime, "batch-time", "", "fixed batch time, "+clock.Layout+" UTC (default now)")
	cmd.Flags().BoolVar(&opts.EmptyBatch, "empty-batch", false, "plan for an empty staging dataset")
	cmd.Flags().StringArrayVar(&opts.Placeholders, "placeholder", nil, "bind a placeholder token, token=value (repeatable)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the plan to a file instead of stdout")

	return cmd
}

func runPlan(opts *PlanOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sink, err := sqlgen.Lookup(opts.Dialect)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	clk, err := batchClock(opts.BatchTime)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	values, err := parsePlaceholders(opts.Placeholders)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	defs, err := loadDefinitions(commandContext(cmd), paths, opts.Ingestion, formatter)
	if err != nil {
		return err
	}

	plans := make([]PlanResult, 0, len(defs))
	for _, d := range defs {
		formatter.VerboseLog("Planning ingestion: %s", d.Name)
		batches, err := planDefinition(d, sink, clk, opts.EmptyBatch)
		if err != nil {
			return outputValidateError(formatter, ErrCodeGeneric, fmt.Sprintf("plan %s: %v", d.Name, err), nil)
		}
		if len(values) > 0 {
			for i, b := range batches {
				batches[i] = b.Bind(values)
			}
		}
		plans = append(plans, PlanResult{Ingestion: d.Name, Dialect: sink.Name(), Batches: batches})
	}

	var buf bytes.Buffer
	out := &OutputFormatter{Format: opts.Format, Writer: &buf}
	if opts.Format == "json" {
		if err := out.Success(plans); err != nil {
			return err
		}
	} else {
		writePlanText(&buf, plans)
	}

	if opts.Output == "" {
		_, err := formatter.Writer.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(opts.Output, buf.Bytes(), 0o644); err != nil {
		return outputValidateError(formatter, ErrCodeWriteFailed, fmt.Sprintf("write %s: %v", opts.Output, err), nil)
	}
	formatter.VerboseLog("Wrote %d plan(s) to %s", len(plans), opts.Output)
	return nil
}

// loadDefinitions loads, validates and orders the definitions under paths,
// keeping only name when it is set. Failures are written through formatter
// and returned as exit errors.
func loadDefinitions(ctx context.Context, paths []string, name string, formatter *OutputFormatter) ([]*compiler.Definition, error) {
	result, err := ValidatePaths(ctx, paths, formatter)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return nil, outputValidateError(formatter, loadErr.Code, loadErr.Message, paths)
		}
		return nil, outputValidateError(formatter, ErrCodeGeneric, err.Error(), paths)
	}
	if !result.Valid {
		return nil, outputValidationErrors(formatter, result)
	}

	if name == "" {
		return result.defs, nil
	}
	d, err := compiler.Find(result.defs, name)
	if err != nil {
		return nil, outputValidateError(formatter, ErrCodeNotFound, err.Error(), nil)
	}
	return []*compiler.Definition{d}, nil
}

// planDefinition renders every batch of d.
func planDefinition(d *compiler.Definition, sink sqlgen.RelationalSink, clk clock.Clock, empty bool) ([]*generator.GeneratorResult, error) {
	opts := d.Options
	opts.Sink = sink
	opts.Clock = clk

	switch {
	case empty:
		res, err := generator.GenerateForEmptyBatch(d.Mode, d.Datasets, opts)
		if err != nil {
			return nil, err
		}
		return []*generator.GeneratorResult{res}, nil
	case len(d.Splits) > 0:
		return generator.GenerateSplits(d.Mode, d.Datasets, opts, d.Splits)
	default:
		res, err := generator.Generate(d.Mode, d.Datasets, opts)
		if err != nil {
			return nil, err
		}
		return []*generator.GeneratorResult{res}, nil
	}
}

// batchClock returns a fixed clock for s, or the system clock when s is
// empty.
func batchClock(s string) (clock.Clock, error) {
	if s == "" {
		return clock.System{}, nil
	}
	t, err := time.ParseInLocation(clock.Layout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid batch time %q: want %s", s, clock.Layout)
	}
	return clock.Fixed(t), nil
}

// parsePlaceholders parses token=value pairs. The token is taken verbatim,
// braces included.
func parsePlaceholders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid placeholder %q: want token=value", p)
		}
		values[k] = v
	}
	return values, nil
}

// writePlanText writes each batch as "-- section" headers followed by
// semicolon-terminated statements.
func writePlanText(w io.Writer, plans []PlanResult) {
	for i, p := range plans {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "-- ingestion: %s (%s)\n", p.Ingestion, p.Dialect)
		for j, b := range p.Batches {
			if len(p.Batches) > 1 {
				fmt.Fprintf(w, "\n-- batch %d\n", j+1)
			}
			if b.Skipped {
				fmt.Fprintln(w, "-- skipped: empty batch")
				continue
			}
			for _, sec := range planSections(b) {
				if len(sec.stmts) == 0 {
					continue
				}
				fmt.Fprintf(w, "\n-- %s\n", sec.name)
				for _, s := range sec.stmts {
					fmt.Fprintf(w, "%s;\n", s)
				}
			}
		}
	}
}

type planSection struct {
	name  string
	stmts []string
}

func planSections(r *generator.GeneratorResult) []planSection {
	var stats []string
	for _, s := range planner.AllStats {
		if sql, ok := r.Stats[string(s)]; ok {
			stats = append(stats, sql)
		}
	}
	single := func(s string) []string {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return []planSection{
		{"pre_actions", r.PreActionsSQL},
		{"deduplicate_and_version", r.DeduplicateAndVersionSQL},
		{"dedup_checks", r.DedupChecksSQL},
		{"ingest", r.IngestSQL},
		{"stats", stats},
		{"metadata_ingest", r.MetadataIngestSQL},
		{"post_actions", r.PostActionsSQL},
		{"incoming_record_count", single(r.IncomingRecordCountSQL)},
		{"empty_batch", r.EmptyBatchSQL},
		{"last_batch_id", single(r.LastBatchIDSQL)},
	}
}
