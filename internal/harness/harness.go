package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/milestone/internal/clock"
	"github.com/roach88/milestone/internal/compiler"
	"github.com/roach88/milestone/internal/executor/sqlexec"
	"github.com/roach88/milestone/internal/generator"
	"github.com/roach88/milestone/internal/ingestor"
	"github.com/roach88/milestone/internal/sqlgen"
)

// deterministicSuffix replaces random temp table suffixes so scenario runs
// name the same tables every time.
const deterministicSuffix = "scenario"

// Harness is the scenario execution engine. Each harness owns a private
// in-memory sqlite database.
type Harness struct {
	db     *sqlexec.DB
	def    *compiler.Definition
	in     *ingestor.Ingestor
	logger *slog.Logger
}

// Run executes a scenario in a fresh in-memory database and returns the
// result.
//
// Execution flow:
//  1. Compile the scenario's CUE file and pick the ingestion definition
//  2. Open an in-memory sqlite database and run the setup statements
//  3. For each step, load staging, ingest, and check the outcome against
//     the step's expectations and the milestoning principles
//  4. Evaluate the final assertions
//
// The returned error covers problems running the scenario at all; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, nil)
}

// RunContext is Run with a context and logger. A nil logger discards logs.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	def, err := loadDefinition(scenario)
	if err != nil {
		return nil, err
	}
	start, err := scenario.StartTime()
	if err != nil {
		return nil, err
	}

	db, err := sqlexec.OpenSQLite(ctx, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}
	defer db.Close()

	sink, err := sqlgen.Lookup(sqlgen.SinkSQLite)
	if err != nil {
		return nil, err
	}
	step := clock.NewStep(start, time.Hour)
	h := &Harness{
		db:     db,
		def:    def,
		logger: logger,
		in: ingestor.New(db, generator.Options{Sink: sink, Clock: step},
			ingestor.WithLogger(logger)),
	}

	for i, stmt := range scenario.Setup {
		if _, err := db.DB().ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("setup statement %d: %w", i, err)
		}
	}

	result := NewResult()
	for _, s := range scenario.Steps {
		sr := h.runStep(ctx, s, result)
		result.Steps = append(result.Steps, sr)
		if sr.Error != "" && s.ExpectError == "" {
			// later steps build on this one
			break
		}
	}

	if len(result.Errors) == 0 {
		for _, msg := range EvaluateAssertions(ctx, db.DB(), scenario.Assertions) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func loadDefinition(s *Scenario) (*compiler.Definition, error) {
	defs, errs := compiler.CompileFile(s.Spec)
	if len(errs) > 0 {
		return nil, fmt.Errorf("compile %s: %w", s.Spec, errors.Join(errs...))
	}
	def, err := compiler.Find(defs, s.Ingestion)
	if err != nil {
		return nil, err
	}
	if verrs := compiler.Validate([]*compiler.Definition{def}); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, e := range verrs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid ingest definition %s:\n  %s", def.Name, strings.Join(msgs, "\n  "))
	}
	return def, nil
}

// runStep loads staging, ingests and records the outcome. Mismatches are
// added to result.
func (h *Harness) runStep(ctx context.Context, step Step, result *Result) StepResult {
	sr := StepResult{Name: step.Name, Batches: []Batch{}}
	fail := func(format string, args ...any) {
		result.AddError(fmt.Sprintf("step %q: ", step.Name) + fmt.Sprintf(format, args...))
	}

	if err := h.loadStaging(ctx, step.Staging); err != nil {
		sr.Error = err.Error()
		fail("load staging: %v", err)
		return sr
	}

	ing := h.def.Ingestion(step.Placeholders)
	if len(step.Splits) > 0 {
		ing.Splits = step.Splits
	}
	if ing.Options.UniqueTempTables && ing.Options.TempTableSuffix == "" {
		ing.Options.TempTableSuffix = deterministicSuffix
	}

	h.logger.Debug("running step", "step", step.Name, "rows", len(step.Staging))
	res, err := h.in.Ingest(ctx, ing)
	if err != nil {
		var de *ingestor.DataError
		isData := errors.As(err, &de)
		sr.Error = err.Error()
		if isData {
			sr.Error = string(de.Code)
		}
		switch {
		case step.ExpectError == "":
			fail("ingest: %v", err)
		case !isData:
			fail("expected data error %s, got: %v", step.ExpectError, err)
		case string(de.Code) != step.ExpectError:
			fail("expected data error %s, got %s", step.ExpectError, de.Code)
		}
		return sr
	}
	if step.ExpectError != "" {
		fail("expected data error %s, ingest succeeded", step.ExpectError)
	}

	for _, r := range res {
		stats := make(map[string]int64, len(r.Stats))
		for k, v := range r.Stats {
			stats[string(k)] = v
		}
		sr.Batches = append(sr.Batches, Batch{
			Status:  string(r.Status),
			BatchID: r.BatchID,
			Stats:   stats,
			Split:   r.Split,
		})
	}

	for _, msg := range compareBatches(step.Expect, sr.Batches) {
		fail("%s", msg)
	}
	for _, err := range CheckPrinciples(ctx, h.db.DB(), h.def) {
		fail("%v", err)
	}
	return sr
}

// loadStaging replaces the staging table contents with rows. Columns follow
// the staging schema; absent values are NULL.
func (h *Harness) loadStaging(ctx context.Context, rows []map[string]any) error {
	staging := h.def.Datasets.Staging
	cols := staging.Schema.Names()

	if _, err := h.db.DB().ExecContext(ctx, "DELETE FROM "+staging.Ref()); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", staging.Ref(), strings.Join(cols, ", "), marks)
	for i, row := range rows {
		for k := range row {
			if !staging.Schema.Has(k) {
				return fmt.Errorf("row %d: unknown staging column %q", i, k)
			}
		}
		args := make([]any, len(cols))
		for j, c := range cols {
			args[j] = stagingValue(row[c])
		}
		if _, err := h.db.DB().ExecContext(ctx, insert, args...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// stagingValue keeps timestamps in the layout generated SQL compares
// against.
func stagingValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return clock.Format(t)
	}
	return v
}

// compareBatches reports every difference between the expected and actual
// batches. No expectations means nothing is checked.
func compareBatches(want []BatchExpect, got []Batch) []string {
	if len(want) == 0 {
		return nil
	}
	if len(want) != len(got) {
		return []string{fmt.Sprintf("expected %d batches, got %d", len(want), len(got))}
	}
	var out []string
	for i, w := range want {
		g := got[i]
		if w.Status != "" && w.Status != g.Status {
			out = append(out, fmt.Sprintf("batch %d: expected status %s, got %s", i, w.Status, g.Status))
		}
		if w.BatchID != 0 && w.BatchID != g.BatchID {
			out = append(out, fmt.Sprintf("batch %d: expected batch id %d, got %d", i, w.BatchID, g.BatchID))
		}
		for _, k := range sortedKeys(w.Stats) {
			if g.Stats[k] != w.Stats[k] {
				out = append(out, fmt.Sprintf("batch %d: expected %s %d, got %d", i, k, w.Stats[k], g.Stats[k]))
			}
		}
	}
	return out
}
