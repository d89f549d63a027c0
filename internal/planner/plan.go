package planner

import (
	"fmt"
	"time"

	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/ingestmode"
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// Stat names a statistics query.
type Stat string

const (
	StatIncomingRecordCount Stat = "incomingRecordCount"
	StatRowsUpdated         Stat = "rowsUpdated"
	StatRowsDeleted         Stat = "rowsDeleted"
	StatRowsInserted        Stat = "rowsInserted"
	StatRowsTerminated      Stat = "rowsTerminated"
)

// AllStats lists the statistics in reporting order.
var AllStats = []Stat{
	StatIncomingRecordCount,
	StatRowsUpdated,
	StatRowsDeleted,
	StatRowsInserted,
	StatRowsTerminated,
}

// Placeholder tokens. Bound by the generator or the ingestor before
// execution.
const (
	DataSplitLowerBound = "{DATA_SPLIT_LOWER_BOUND_PLACEHOLDER}"
	DataSplitUpperBound = "{DATA_SPLIT_UPPER_BOUND_PLACEHOLDER}"
)

// Options are the planning knobs. All of them are optional.
type Options struct {
	CleanupStagingData     bool
	CollectStatistics      bool
	AddOptimizationFilters bool
	EnableSchemaEvolution  bool

	// BatchIDPattern replaces the batch id subquery with a raw token.
	BatchIDPattern string

	// BatchStartTimestampPattern and BatchEndTimestampPattern replace the
	// batch timestamps with quoted tokens.
	BatchStartTimestampPattern string
	BatchEndTimestampPattern   string

	// BatchTime is the batch timestamp. Required for datetime milestoning
	// unless BatchStartTimestampPattern is set.
	BatchTime time.Time

	// TempTableSuffix is appended to synthesized table names.
	TempTableSuffix string

	// MetadataTable overrides the batch metadata table name.
	MetadataTable string
}

// Plan is the ordered statement list for one ingestion.
//
// Execution order: PreActions once, then per data split
// DeduplicateAndVersion, DedupChecks (abort if any returns > 1), Ingest,
// Stats, Metadata. PostActions run once at the end.
type Plan struct {
	PreActions            []lp.Statement
	DeduplicateAndVersion []lp.Statement
	DedupChecks           []lp.Statement
	Ingest                []lp.Statement
	Metadata              []lp.Statement
	PostActions           []lp.Statement

	// IncomingCount counts the staging rows of the batch. Always present;
	// used to detect empty batches.
	IncomingCount lp.Statement

	// LastBatchID reads the latest committed batch id of main.
	LastBatchID lp.Statement

	// Stats is nil unless CollectStatistics is set.
	Stats map[Stat]lp.Statement

	// EmptyBatch replaces Ingest when staging is empty and the mode's
	// empty-batch policy is DeleteTargetData.
	EmptyBatch []lp.Statement

	// Datasets are the resolved datasets the plan was built against.
	Datasets dataset.Datasets
}

// Build plans one ingestion of ds.Staging into ds.Main under mode m.
//
// Build is pure: the same inputs always produce the same plan. The main
// schema is derived from staging when ds.Main has none, and temp datasets
// are synthesized when absent.
func Build(m ingestmode.IngestMode, ds dataset.Datasets, opts Options) (*Plan, error) {
	m = ingestmode.Normalize(m)
	if err := ingestmode.Check(m, ds, ingestmode.ValidateOptions{EnableSchemaEvolution: opts.EnableSchemaEvolution}); err != nil {
		return nil, err
	}

	resolved, err := Prepare(m, ds, opts)
	if err != nil {
		return nil, err
	}

	b, err := newBuilder(m, resolved, opts)
	if err != nil {
		return nil, err
	}

	p := &Plan{Datasets: resolved}
	p.PreActions = b.preActions()
	p.DeduplicateAndVersion = b.deduplicateAndVersion()
	p.DedupChecks = b.dedupChecks()

	switch v := m.(type) {
	case ingestmode.UnitemporalDelta:
		p.Ingest = b.unitemporalDelta(v)
	case ingestmode.UnitemporalSnapshot:
		p.Ingest = b.unitemporalSnapshot(v)
	case ingestmode.BitemporalDelta:
		if b.fromOnly {
			p.Ingest = b.bitemporalFromOnly()
		} else {
			p.Ingest = b.bitemporalDelta()
		}
	case ingestmode.BitemporalSnapshot:
		p.Ingest = b.bitemporalSnapshot()
	default:
		return nil, fmt.Errorf("unsupported ingest mode %T", m)
	}
	p.Ingest = append(p.Ingest, b.emptyMaterialized()...)

	p.Metadata = []lp.Statement{b.metadataInsert()}
	p.PostActions = b.postActions()
	p.IncomingCount = b.incomingCount()
	p.LastBatchID = b.lastBatchID()
	if opts.CollectStatistics {
		p.Stats = b.stats()
	}
	if _, ok := ingestmode.EmptyHandling(m).(ingestmode.DeleteTargetData); ok {
		p.EmptyBatch = b.deleteAll()
	}
	return p, nil
}

// Prepare derives the main schema when missing and resolves every
// synthesized dataset.
func Prepare(m ingestmode.IngestMode, ds dataset.Datasets, opts Options) (dataset.Datasets, error) {
	if len(ds.Main.Schema.Fields) == 0 {
		ds.Main.Schema = DeriveMainSchema(m, ds.Staging.Schema)
	}
	return ds.Resolve(dataset.ResolveOptions{Suffix: opts.TempTableSuffix, MetadataTable: opts.MetadataTable})
}

// DeriveMainSchema builds the main table schema from staging: payload
// fields, then validity target fields (bitemporal), then milestoning fields.
// The primary key gains the validity from field and the batch-in field.
func DeriveMainSchema(m ingestmode.IngestMode, staging dataset.Schema) dataset.Schema {
	m = ingestmode.Normalize(m)
	out := staging.Without(ingestmode.AuxiliaryStagingFields(m)...)

	if vd, ok := ingestmode.Validity(m); ok {
		fromRef, _ := ingestmode.ReferenceFields(vd.Derivation)
		ft := dataset.FieldType{Type: dataset.DateTime}
		if f, ok := staging.Field(fromRef); ok {
			ft = f.Type
		}
		out = out.With(
			dataset.Field{Name: vd.FromField, Type: ft, PrimaryKey: true},
			dataset.Field{Name: vd.ThroughField, Type: ft},
		)
	}

	tm := ingestmode.Milestoning(m)
	batchIn, batchOut, hasBatch := ingestmode.BatchIDFields(tm)
	if hasBatch {
		out = out.With(
			dataset.Field{Name: batchIn, Type: dataset.FieldType{Type: dataset.Integer}, PrimaryKey: true},
			dataset.Field{Name: batchOut, Type: dataset.FieldType{Type: dataset.Integer}},
		)
	}
	if timeIn, timeOut, ok := ingestmode.DateTimeFields(tm); ok {
		out = out.With(
			dataset.Field{Name: timeIn, Type: dataset.FieldType{Type: dataset.DateTime}, PrimaryKey: !hasBatch},
			dataset.Field{Name: timeOut, Type: dataset.FieldType{Type: dataset.DateTime}},
		)
	}
	return out
}
