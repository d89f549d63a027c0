package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/milestone/internal/executor"
	_ "github.com/roach88/milestone/internal/executor/pgexec"
	_ "github.com/roach88/milestone/internal/executor/sqlexec"
	"github.com/roach88/milestone/internal/generator"
	"github.com/roach88/milestone/internal/ingestor"
	"github.com/roach88/milestone/internal/planner"
	"github.com/roach88/milestone/internal/sqlgen"
)

// EnvDSN names the environment variable read when --dsn is not given.
const EnvDSN = "MILESTONE_DSN"

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Driver       string
	DSN          string
	Ingestion    string
	BatchTime    string
	Placeholders []string
	Before       []string
	After        []string
	MetricsOut   string
}

// IngestResult is the outcome of one ingest run.
type IngestResult struct {
	Driver  string             `json:"driver"`
	Batches []ingestor.Result `json:"batches"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Apply staging data to main tables",
		Long: `Compile ingest definitions and run them against a database in a
single transaction. Any failure rolls back every ingestion of the run.

Without --ingestion every definition runs, producers first. The DSN is read
from ` + EnvDSN + ` when --dsn is not given.

Exit codes:
  0 - All batches applied or skipped
  1 - Staging data rejected (duplicate rows, empty batch)
  2 - Command error (invalid definitions, unreachable database, SQL failure)

Examples:
  milestone ingest ./ingest --driver sqlite --dsn ./warehouse.db
  MILESTONE_DSN=postgres://localhost/dw milestone ingest customers.cue --driver postgres
  milestone ingest ./ingest --dsn dw.db --placeholder "{BATCH_ID}=42" --metrics-out metrics.prom`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "sqlite", fmt.Sprintf("database driver (%s)", strings.Join(executor.Kinds(), "|")))
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name (default $"+EnvDSN+")")
	cmd.Flags().StringVar(&opts.Ingestion, "ingestion", "", "run only this ingest definition")
	cmd.Flags().StringVar(&opts.BatchTime, "batch-time", "", "fixed batch time (default now)")
	cmd.Flags().StringArrayVar(&opts.Placeholders, "placeholder", nil, "bind a placeholder token, token=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Before, "before", nil, "statement to run first in the transaction (repeatable)")
	cmd.Flags().StringArrayVar(&opts.After, "after", nil, "statement to run last in the transaction (repeatable)")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus text metrics to this file")

	return cmd
}

func runIngest(opts *IngestOptions, paths []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	dsn := opts.DSN
	if dsn == "" {
		dsn = os.Getenv(EnvDSN)
	}
	if dsn == "" {
		return outputValidateError(formatter, ErrCodeGeneric, "no data source: set --dsn or "+EnvDSN, nil)
	}
	if !slices.Contains(executor.Kinds(), opts.Driver) {
		return outputValidateError(formatter, ErrCodeGeneric,
			fmt.Sprintf("unknown driver %q (available: %s)", opts.Driver, strings.Join(executor.Kinds(), ", ")), nil)
	}
	sink, err := sqlgen.Lookup(opts.Driver)
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

	defs, err := loadDefinitions(ctx, paths, opts.Ingestion, formatter)
	if err != nil {
		return err
	}

	ex, err := executor.Open(ctx, executor.Config{Kind: opts.Driver, DSN: dsn})
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open executor", err)
	}
	defer ex.Close()

	reg := prometheus.NewRegistry()
	in := ingestor.New(ex, generator.Options{Sink: sink, Clock: clk},
		ingestor.WithLogger(logger),
		ingestor.WithMetrics(ingestor.NewMetrics(reg)),
	)

	group := ingestor.Group{Before: opts.Before, After: opts.After}
	for _, d := range defs {
		group.Ingestions = append(group.Ingestions, d.Ingestion(values))
	}
	formatter.VerboseLog("Running %d ingestion(s) against %s", len(group.Ingestions), opts.Driver)

	results, ingestErr := in.IngestGroup(ctx, group)

	if opts.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsOut, reg); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write metrics", err)
		}
		formatter.VerboseLog("Wrote metrics to %s", opts.MetricsOut)
	}

	if ingestErr != nil {
		return outputIngestError(formatter, ingestErr)
	}
	return outputIngestResult(formatter, IngestResult{Driver: opts.Driver, Batches: results})
}

func outputIngestError(formatter *OutputFormatter, err error) error {
	var de *ingestor.DataError
	if errors.As(err, &de) {
		_ = formatter.Error(string(de.Code), err.Error(), de.Details)
		return WrapExitError(ExitFailure, "staging data rejected", err)
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "ingest", err)
}

func outputIngestResult(formatter *OutputFormatter, result IngestResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, r := range result.Batches {
		line := fmt.Sprintf("%s %s", r.Status, r.Table)
		if r.Status == ingestor.StatusDone {
			line += fmt.Sprintf(" batch %d", r.BatchID)
		}
		if r.Split != nil {
			line += fmt.Sprintf(" split [%d, %d]", r.Split.Lower, r.Split.Upper)
		}
		fmt.Fprintln(w, line)
		for _, s := range planner.AllStats {
			if n, ok := r.Stats[s]; ok {
				fmt.Fprintf(w, "  %s: %d\n", s, n)
			}
		}
	}
	fmt.Fprintf(w, "✓ %d batch(es) committed\n", len(result.Batches))
	return nil
}
