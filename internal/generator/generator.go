package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/milestone/internal/clock"
	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/ingestmode"
	lp "github.com/roach88/milestone/internal/logicalplan"
	"github.com/roach88/milestone/internal/planner"
	"github.com/roach88/milestone/internal/sqlgen"
)

// ErrEmptyBatch is returned by GenerateForEmptyBatch when the mode's policy
// is FailEmptyBatch.
var ErrEmptyBatch = errors.New("staging dataset is empty")

// Options configure SQL generation.
type Options struct {
	CleanupStagingData     bool
	CollectStatistics      bool
	EnableSchemaEvolution  bool
	AddOptimizationFilters bool

	// UniqueTempTables appends a random suffix to every synthesized table
	// name unless TempTableSuffix is already set.
	UniqueTempTables bool
	TempTableSuffix  string
	MetadataTable    string

	CaseConversion sqlgen.CaseConversion

	// Sink is the target dialect. Nil renders ANSI.
	Sink sqlgen.RelationalSink

	// Clock supplies the batch time. Nil uses the system clock.
	Clock clock.Clock

	BatchIDPattern             string
	BatchStartTimestampPattern string
	BatchEndTimestampPattern   string
}

func (o Options) sink() sqlgen.RelationalSink {
	if o.Sink != nil {
		return o.Sink
	}
	s, _ := sqlgen.Lookup(sqlgen.SinkANSI)
	return s
}

func (o Options) clock() clock.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return clock.System{}
}

// PinTempTables returns a copy of o whose unique temp table suffix is chosen
// now, so every generation with the copy names the same tables.
func (o Options) PinTempTables() Options {
	if o.TempTableSuffix == "" && o.UniqueTempTables {
		o.TempTableSuffix = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return o
}

func (o Options) plannerOptions() planner.Options {
	o = o.PinTempTables()
	po := planner.Options{
		CleanupStagingData:         o.CleanupStagingData,
		CollectStatistics:          o.CollectStatistics,
		AddOptimizationFilters:     o.AddOptimizationFilters,
		EnableSchemaEvolution:      o.EnableSchemaEvolution,
		BatchIDPattern:             o.BatchIDPattern,
		BatchStartTimestampPattern: o.BatchStartTimestampPattern,
		BatchEndTimestampPattern:   o.BatchEndTimestampPattern,
		TempTableSuffix:            o.TempTableSuffix,
		MetadataTable:              o.MetadataTable,
	}
	if o.BatchStartTimestampPattern == "" {
		po.BatchTime = o.clock().Now()
	}
	return po
}

// DataSplitRange is an inclusive range of data split values.
type DataSplitRange struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

// Generate plans and renders one ingestion.
func Generate(m ingestmode.IngestMode, ds dataset.Datasets, opts Options) (*GeneratorResult, error) {
	plan, err := planner.Build(m, ds, opts.plannerOptions())
	if err != nil {
		return nil, err
	}
	return render(plan, opts)
}

// GenerateForEmptyBatch applies the mode's empty-batch policy:
//
//	NoOp              empty result, nothing to run
//	FailEmptyBatch    ErrEmptyBatch
//	DeleteTargetData  the close-everything plan replaces Ingest
//	nil               the regular plan
func GenerateForEmptyBatch(m ingestmode.IngestMode, ds dataset.Datasets, opts Options) (*GeneratorResult, error) {
	switch ingestmode.EmptyHandling(m).(type) {
	case ingestmode.NoOp, *ingestmode.NoOp:
		r := &GeneratorResult{Skipped: true}
		r.Fingerprint = r.fingerprint()
		return r, nil
	case ingestmode.FailEmptyBatch, *ingestmode.FailEmptyBatch:
		return nil, ErrEmptyBatch
	case ingestmode.DeleteTargetData, *ingestmode.DeleteTargetData:
		plan, err := planner.Build(m, ds, opts.plannerOptions())
		if err != nil {
			return nil, err
		}
		plan.DeduplicateAndVersion = nil
		plan.DedupChecks = nil
		plan.Ingest = plan.EmptyBatch
		return render(plan, opts)
	}
	return Generate(m, ds, opts)
}

// GenerateSplits renders the plan once and binds it per data split range.
// Every result carries the same pre-actions; the ingestor runs them once.
func GenerateSplits(m ingestmode.IngestMode, ds dataset.Datasets, opts Options, ranges []DataSplitRange) ([]*GeneratorResult, error) {
	if ingestmode.DataSplitField(m) == "" {
		return nil, fmt.Errorf("ingest mode %T has no data split field", m)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("at least one data split range is required")
	}
	base, err := Generate(m, ds, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*GeneratorResult, len(ranges))
	for i, r := range ranges {
		if r.Lower > r.Upper {
			return nil, fmt.Errorf("data split range %d: lower %d exceeds upper %d", i, r.Lower, r.Upper)
		}
		out[i] = base.Bind(SplitValues(r))
	}
	return out, nil
}

// SplitValues maps the data split placeholders to r's bounds.
func SplitValues(r DataSplitRange) map[string]string {
	return map[string]string{
		planner.DataSplitLowerBound: fmt.Sprint(r.Lower),
		planner.DataSplitUpperBound: fmt.Sprint(r.Upper),
	}
}

func render(p *planner.Plan, opts Options) (*GeneratorResult, error) {
	r := sqlgen.NewRenderer(opts.sink(), opts.CaseConversion)
	res := &GeneratorResult{
		MainTable: p.Datasets.Main.Name,
		Stats:     map[string]string{},
	}

	groups := []struct {
		name  string
		stmts []lp.Statement
		dst   *[]string
	}{
		{"pre-actions", p.PreActions, &res.PreActionsSQL},
		{"deduplicate and version", p.DeduplicateAndVersion, &res.DeduplicateAndVersionSQL},
		{"dedup checks", p.DedupChecks, &res.DedupChecksSQL},
		{"ingest", p.Ingest, &res.IngestSQL},
		{"metadata", p.Metadata, &res.MetadataIngestSQL},
		{"post-actions", p.PostActions, &res.PostActionsSQL},
		{"empty batch", p.EmptyBatch, &res.EmptyBatchSQL},
	}
	for _, g := range groups {
		sqls, err := r.RenderAll(g.stmts)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", g.name, err)
		}
		if len(sqls) > 0 {
			*g.dst = sqls
		}
	}

	incoming, err := r.Render(p.IncomingCount)
	if err != nil {
		return nil, fmt.Errorf("render incoming record count: %w", err)
	}
	res.IncomingRecordCountSQL = incoming

	last, err := r.Render(p.LastBatchID)
	if err != nil {
		return nil, fmt.Errorf("render last batch id: %w", err)
	}
	res.LastBatchIDSQL = last

	for _, s := range planner.AllStats {
		stmt, ok := p.Stats[s]
		if !ok {
			continue
		}
		sql, err := r.Render(stmt)
		if err != nil {
			return nil, fmt.Errorf("render stat %s: %w", s, err)
		}
		res.Stats[string(s)] = sql
	}

	res.Fingerprint = res.fingerprint()
	return res, nil
}
