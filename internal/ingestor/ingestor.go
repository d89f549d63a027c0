package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/roach88/milestone/internal/clock"
	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/executor"
	"github.com/roach88/milestone/internal/generator"
	"github.com/roach88/milestone/internal/ingestmode"
	"github.com/roach88/milestone/internal/planner"
)

// Status is the outcome of one batch.
type Status string

const (
	StatusDone    Status = "DONE"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Ingestion is one staging dataset applied to one main dataset.
type Ingestion struct {
	Mode     ingestmode.IngestMode
	Datasets dataset.Datasets

	// Splits are the data split ranges, applied in order as separate
	// batches. Required when the mode has a data split field.
	Splits []generator.DataSplitRange

	// Placeholders bind pattern tokens. Batch id and timestamp patterns left
	// unbound are filled in by the ingestor.
	Placeholders map[string]string

	// Options replace the ingestor's generator options for this ingestion.
	// A nil Sink or Clock falls back to the ingestor's.
	Options *generator.Options
}

// Group is a set of ingestions applied atomically. Before and After are
// caller statements executed in the same transaction.
type Group struct {
	Before     []string
	Ingestions []Ingestion
	After      []string
}

// Result describes one applied batch.
type Result struct {
	Table string `json:"table"`

	// BatchID is the batch id recorded in batch metadata. Zero for skipped
	// batches.
	BatchID int64  `json:"batch_id"`
	Status  Status `json:"status"`

	// Stats always holds the incoming record count; the other statistics
	// are present when statistics collection is enabled.
	Stats map[planner.Stat]int64 `json:"stats"`

	Split       *generator.DataSplitRange `json:"split,omitempty"`
	Fingerprint string                    `json:"fingerprint"`
	Elapsed     time.Duration             `json:"elapsed"`
}

// Ingestor runs generated plans against an Executor.
//
// The ingestor borrows the executor; callers close it.
type Ingestor struct {
	ex      executor.Executor
	opts    generator.Options
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingestor) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithMetrics records every batch on m.
func WithMetrics(m *Metrics) Option {
	return func(in *Ingestor) {
		in.metrics = m
	}
}

// New creates an Ingestor generating SQL with opts.
func New(ex executor.Executor, opts generator.Options, options ...Option) *Ingestor {
	in := &Ingestor{ex: ex, opts: opts, logger: slog.Default()}
	for _, o := range options {
		o(in)
	}
	return in
}

// Ingest applies one ingestion in its own transaction.
func (in *Ingestor) Ingest(ctx context.Context, ing Ingestion) ([]Result, error) {
	return in.IngestGroup(ctx, Group{Ingestions: []Ingestion{ing}})
}

// IngestGroup applies every ingestion of g in a single transaction. Any
// failure rolls back the whole group, including the caller statements.
func (in *Ingestor) IngestGroup(ctx context.Context, g Group) ([]Result, error) {
	var results []Result
	err := executor.RunInTransaction(ctx, in.ex, func(tx executor.Tx) error {
		if err := in.exec(ctx, tx, "before", g.Before); err != nil {
			return err
		}
		for i, ing := range g.Ingestions {
			rs, err := in.ingest(ctx, tx, ing)
			if err != nil {
				return fmt.Errorf("ingestion %d (%s): %w", i, ing.Datasets.Main.Name, err)
			}
			results = append(results, rs...)
		}
		return in.exec(ctx, tx, "after", g.After)
	})
	if err != nil {
		for _, ing := range g.Ingestions {
			in.metrics.failed(ing.Datasets.Main.Name)
		}
		in.logger.Error("ingest group rolled back",
			"ingestions", len(g.Ingestions),
			"error", err,
		)
		return nil, err
	}

	for _, r := range results {
		for _, stat := range in.metrics.observe(r, r.Elapsed) {
			in.logger.Warn("negative batch statistic not recorded",
				"table", r.Table,
				"batch_id", r.BatchID,
				"stat", stat,
				"value", r.Stats[stat],
			)
		}
		in.logger.Info("batch committed",
			"table", r.Table,
			"batch_id", r.BatchID,
			"status", r.Status,
			"incoming", r.Stats[planner.StatIncomingRecordCount],
		)
	}
	return results, nil
}

// ingest runs every split of one ingestion. Pre-actions run before the
// first applied split and post-actions after the last.
func (in *Ingestor) ingest(ctx context.Context, tx executor.Tx, ing Ingestion) ([]Result, error) {
	ranges, err := splitRanges(ing)
	if err != nil {
		return nil, err
	}

	opts := in.optionsFor(ing).PinTempTables()
	var (
		results  []Result
		post     []string
		prepared bool
	)
	for _, r := range ranges {
		start := time.Now()

		values := map[string]string{}
		maps.Copy(values, ing.Placeholders)
		if r != nil {
			maps.Copy(values, generator.SplitValues(*r))
		}

		// One batch time per split, shared by the regular and empty-batch
		// plans.
		splitOpts := opts
		splitOpts.Clock = clock.Fixed(opts.Clock.Now())

		res, err := generator.Generate(ing.Mode, ing.Datasets, splitOpts)
		if err != nil {
			return nil, err
		}
		table := res.MainTable

		incoming, err := executor.QueryInt(ctx, tx, generator.Substitute(res.IncomingRecordCountSQL, values))
		if err != nil {
			return nil, fmt.Errorf("incoming record count: %w", err)
		}
		if incoming == 0 && ingestmode.EmptyHandling(ing.Mode) != nil {
			res, err = generator.GenerateForEmptyBatch(ing.Mode, ing.Datasets, splitOpts)
			if errors.Is(err, generator.ErrEmptyBatch) {
				return nil, &DataError{
					Code:    ErrCodeEmptyBatch,
					Message: "staging dataset is empty",
					Table:   table,
					Details: splitDetails(r),
				}
			}
			if err != nil {
				return nil, err
			}
			if res.Skipped {
				in.logger.Debug("empty batch skipped", "table", table)
				results = append(results, Result{
					Table:       table,
					Status:      StatusSkipped,
					Stats:       map[planner.Stat]int64{planner.StatIncomingRecordCount: 0},
					Split:       r,
					Fingerprint: res.Fingerprint,
					Elapsed:     time.Since(start),
				})
				continue
			}
		}

		if !prepared {
			if err := in.exec(ctx, tx, "pre-actions", res.PreActionsSQL); err != nil {
				return nil, err
			}
			prepared = true
		}
		if err := in.bindBatch(ctx, tx, res, splitOpts, values); err != nil {
			return nil, err
		}
		res = res.Bind(values)

		if err := in.exec(ctx, tx, "deduplicate and version", res.DeduplicateAndVersionSQL); err != nil {
			return nil, err
		}
		if err := in.checkDuplicates(ctx, tx, res, r); err != nil {
			return nil, err
		}
		if err := in.exec(ctx, tx, "ingest", res.IngestSQL); err != nil {
			return nil, err
		}
		stats, err := in.collectStats(ctx, tx, res)
		if err != nil {
			return nil, err
		}
		stats[planner.StatIncomingRecordCount] = incoming
		if err := in.exec(ctx, tx, "metadata", res.MetadataIngestSQL); err != nil {
			return nil, err
		}
		batchID, err := executor.QueryInt(ctx, tx, res.LastBatchIDSQL)
		if err != nil {
			return nil, fmt.Errorf("read batch id: %w", err)
		}

		in.logger.Debug("batch applied",
			"table", table,
			"batch_id", batchID,
			"fingerprint", res.Fingerprint,
		)
		results = append(results, Result{
			Table:       table,
			BatchID:     batchID,
			Status:      StatusDone,
			Stats:       stats,
			Split:       r,
			Fingerprint: res.Fingerprint,
			Elapsed:     time.Since(start),
		})
		post = res.PostActionsSQL
	}

	if prepared {
		if err := in.exec(ctx, tx, "post-actions", post); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// optionsFor resolves the options of one ingestion. The result always
// carries a clock.
func (in *Ingestor) optionsFor(ing Ingestion) generator.Options {
	o := in.opts
	if ing.Options != nil {
		o = *ing.Options
		if o.Sink == nil {
			o.Sink = in.opts.Sink
		}
		if o.Clock == nil {
			o.Clock = in.opts.Clock
		}
	}
	if o.Clock == nil {
		o.Clock = clock.System{}
	}
	return o
}

// splitRanges returns the ranges to apply, or a single nil range when the
// mode has no data split.
func splitRanges(ing Ingestion) ([]*generator.DataSplitRange, error) {
	field := ingestmode.DataSplitField(ing.Mode)
	switch {
	case field == "" && len(ing.Splits) > 0:
		return nil, fmt.Errorf("data split ranges given but ingest mode %T has no data split field", ing.Mode)
	case field == "":
		return []*generator.DataSplitRange{nil}, nil
	case len(ing.Splits) == 0:
		return nil, fmt.Errorf("data split field %q requires at least one data split range", field)
	}
	out := make([]*generator.DataSplitRange, len(ing.Splits))
	for i := range ing.Splits {
		r := ing.Splits[i]
		if r.Lower > r.Upper {
			return nil, fmt.Errorf("data split range %d: lower %d exceeds upper %d", i, r.Lower, r.Upper)
		}
		out[i] = &r
	}
	return out, nil
}

// bindBatch fills unbound batch id and timestamp patterns from the split's
// pinned clock. The batch id is the last recorded id plus one.
func (in *Ingestor) bindBatch(ctx context.Context, tx executor.Tx, res *generator.GeneratorResult, opts generator.Options, values map[string]string) error {
	if p := opts.BatchIDPattern; p != "" {
		if _, ok := values[p]; !ok {
			last, err := executor.QueryInt(ctx, tx, res.LastBatchIDSQL)
			if err != nil {
				return fmt.Errorf("allocate batch id: %w", err)
			}
			values[p] = strconv.FormatInt(last+1, 10)
		}
	}
	if p := opts.BatchStartTimestampPattern; p != "" {
		if _, ok := values[p]; !ok {
			values[p] = clock.Format(opts.Clock.Now())
		}
	}
	if p := opts.BatchEndTimestampPattern; p != "" {
		if _, ok := values[p]; !ok {
			values[p] = clock.Format(opts.Clock.Now())
		}
	}
	return nil
}

// checkDuplicates fails the batch when any dedup check returns more than one
// row per key.
func (in *Ingestor) checkDuplicates(ctx context.Context, tx executor.Tx, res *generator.GeneratorResult, r *generator.DataSplitRange) error {
	for _, sql := range res.DedupChecksSQL {
		n, err := executor.QueryInt(ctx, tx, sql)
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if n > 1 {
			details := splitDetails(r)
			details["max_duplicates"] = strconv.FormatInt(n, 10)
			return &DataError{
				Code:    ErrCodeDuplicateRows,
				Message: fmt.Sprintf("staging holds up to %d rows per primary key", n),
				Table:   res.MainTable,
				Details: details,
			}
		}
	}
	return nil
}

func (in *Ingestor) collectStats(ctx context.Context, tx executor.Tx, res *generator.GeneratorResult) (map[planner.Stat]int64, error) {
	stats := map[planner.Stat]int64{}
	for _, s := range planner.AllStats {
		sql, ok := res.Stats[string(s)]
		if !ok || s == planner.StatIncomingRecordCount {
			continue
		}
		n, err := executor.QueryInt(ctx, tx, sql)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", s, err)
		}
		stats[s] = n
	}
	return stats, nil
}

func (in *Ingestor) exec(ctx context.Context, tx executor.Tx, phase string, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	in.logger.Debug("executing statements", "phase", phase, "count", len(stmts))
	if err := executor.ExecAll(ctx, tx, stmts); err != nil {
		return fmt.Errorf("%s: %w", phase, err)
	}
	return nil
}

func splitDetails(r *generator.DataSplitRange) map[string]string {
	d := map[string]string{}
	if r != nil {
		d["split_lower"] = strconv.FormatInt(r.Lower, 10)
		d["split_upper"] = strconv.FormatInt(r.Upper, 10)
	}
	return d
}
