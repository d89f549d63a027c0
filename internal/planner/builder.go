package planner

import (
	"fmt"
	"slices"

	"github.com/roach88/milestone/internal/clock"
	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/ingestmode"
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// builder holds everything derived once per Build and shared by the
// per-mode planners.
type builder struct {
	mode ingestmode.IngestMode
	ds   dataset.Datasets
	opts Options

	// Aliases for main and every staging-shaped source.
	sink  string
	stage string

	// keys match staging rows to main rows (staging primary keys minus
	// control fields). rankKeys keep the validity references and drive
	// duplicate detection and stage versioning.
	keys     []string
	rankKeys []string

	digest     string
	dataFields []string
	ms         milestones

	bitemporal bool
	fromOnly   bool
	validity   ingestmode.ValidDateTime
	fromRef    string
	thruRef    string

	deleteInd ingestmode.DeleteIndicator
	hasDelete bool

	splitField string

	// src is the effective staging dataset. It starts as raw staging and is
	// replaced by materialized tables during deduplication and versioning.
	src         dataset.Dataset
	srcFiltered bool

	next      lp.Value
	prev      lp.Value
	batchTime lp.Value
}

func newBuilder(m ingestmode.IngestMode, ds dataset.Datasets, opts Options) (*builder, error) {
	b := &builder{
		mode:   m,
		ds:     ds,
		opts:   opts,
		sink:   ds.Main.Alias,
		stage:  ds.Staging.Alias,
		digest: ingestmode.Digest(m),
		ms:     newMilestones(ingestmode.Milestoning(m)),
	}

	aux := ingestmode.AuxiliaryStagingFields(m)
	for _, k := range ds.Staging.Schema.PrimaryKeys() {
		if !slices.Contains(aux, k) {
			b.keys = append(b.keys, k)
		}
	}

	b.splitField = ingestmode.DataSplitField(m)
	b.deleteInd, b.hasDelete = ingestmode.AsDeleteIndicator(ingestmode.Merge(m))

	for _, k := range ds.Staging.Schema.PrimaryKeys() {
		if k != b.splitField && (!b.hasDelete || k != b.deleteInd.Field) {
			b.rankKeys = append(b.rankKeys, k)
		}
	}

	if vd, ok := ingestmode.Validity(m); ok {
		b.bitemporal = true
		b.fromOnly = ingestmode.IsFromOnly(m)
		b.validity = vd
		b.fromRef, b.thruRef = ingestmode.ReferenceFields(vd.Derivation)
	}

	milestoneCols := b.ms.columns()
	for _, f := range ds.Main.Schema.Fields {
		switch {
		case slices.Contains(milestoneCols, f.Name):
		case b.bitemporal && (f.Name == b.validity.FromField || f.Name == b.validity.ThroughField):
		case !ds.Staging.Schema.Has(f.Name):
		default:
			b.dataFields = append(b.dataFields, f.Name)
		}
	}

	b.src = ds.Staging
	b.srcFiltered = b.splitField != ""

	b.next = b.nextBatchID()
	b.prev = lp.Sub(b.next, lp.Num(1))
	bt, err := b.batchTimeValue()
	if err != nil {
		return nil, err
	}
	b.batchTime = bt
	return b, nil
}

// nextBatchID is the batch id allocated by this ingestion: the pattern token
// or the metadata max + 1 subquery.
func (b *builder) nextBatchID() lp.Value {
	if b.opts.BatchIDPattern != "" {
		return lp.Placeholder{Token: b.opts.BatchIDPattern}
	}
	md := *b.ds.Metadata
	return lp.Scalar(lp.Selection{
		Source: lp.Ref(md),
		Fields: []lp.Value{lp.Add(lp.Coalesce(lp.Max(lp.Col(md.Alias, dataset.MetadataBatchID)), lp.Num(0)), lp.Num(1))},
		Where:  lp.Eq(lp.Col(md.Alias, dataset.MetadataTableName), lp.TableName{Value: b.ds.Main.Name}),
	})
}

func (b *builder) batchTimeValue() (lp.Value, error) {
	if b.opts.BatchStartTimestampPattern != "" {
		return lp.Str(b.opts.BatchStartTimestampPattern), nil
	}
	if b.opts.BatchTime.IsZero() {
		if b.ms.hasTime {
			return nil, fmt.Errorf("batch time is required for datetime milestoning")
		}
		return nil, nil
	}
	return lp.Str(clock.Format(b.opts.BatchTime)), nil
}

// splitFilter restricts a staging-shaped source to the current data split.
// Nil once staging has been materialized, because materialization already
// applied it.
func (b *builder) splitFilter(alias string) lp.Condition {
	if !b.srcFiltered {
		return nil
	}
	return b.splitRange(alias)
}

// splitRange bounds the data split field by the split placeholders.
func (b *builder) splitRange(alias string) lp.Condition {
	if b.splitField == "" {
		return nil
	}
	return lp.AndOf(
		lp.Ge(lp.Col(alias, b.splitField), lp.Placeholder{Token: DataSplitLowerBound}),
		lp.Le(lp.Col(alias, b.splitField), lp.Placeholder{Token: DataSplitUpperBound}),
	)
}

// srcRef is the effective staging source under the staging alias.
func (b *builder) srcRef() lp.TableRef {
	return lp.Ref(b.src).As(b.stage)
}

func (b *builder) mainRef() lp.TableRef {
	return lp.Ref(b.ds.Main)
}

// fromSrc selects every row of effective staging matching conds and the
// split filter.
func (b *builder) fromSrc(conds ...lp.Condition) lp.Selection {
	return lp.Selection{
		Source: b.srcRef(),
		Where:  lp.AndOf(append([]lp.Condition{b.splitFilter(b.stage)}, conds...)...),
	}
}

// tombstone is true for staging rows carrying a delete indicator value.
func (b *builder) tombstone(alias string) lp.Condition {
	if !b.hasDelete {
		return nil
	}
	return lp.In{Value: lp.Col(alias, b.deleteInd.Field), List: lp.Strs(b.deleteInd.Values)}
}

// notTombstone is nil when the mode has no delete indicator.
func (b *builder) notTombstone(alias string) lp.Condition {
	if !b.hasDelete {
		return nil
	}
	return lp.NotOf(b.tombstone(alias))
}

// keyMatch equates business keys between two aliases.
func (b *builder) keyMatch(left, right string) lp.Condition {
	return lp.KeyMatch(left, right, b.keys)
}

// targetColumns is the main column list for rows built from staging.
func (b *builder) targetColumns() []string {
	cols := slices.Clone(b.dataFields)
	if b.bitemporal {
		cols = append(cols, b.validity.FromField, b.validity.ThroughField)
	}
	return append(cols, b.ms.columns()...)
}

// stagingProjection maps a staging row to targetColumns.
func (b *builder) stagingProjection(alias string) []lp.Value {
	vals := lp.Cols(alias, b.dataFields)
	if b.bitemporal {
		vals = append(vals, lp.Col(alias, b.fromRef), lp.Col(alias, b.thruRef))
	}
	return append(vals, b.ms.values(b.next, b.batchTime)...)
}

// closeOut is the UPDATE that milestones the open main rows matching where.
func (b *builder) closeOut(where lp.Condition) lp.Update {
	return lp.Update{
		Table: b.mainRef(),
		Set:   b.ms.closeOut(b.prev, b.batchTime),
		Where: where,
	}
}

func unkeyed(s dataset.Schema) []dataset.Field {
	out := s.Clone().Fields
	for i := range out {
		out[i].PrimaryKey = false
	}
	return out
}
