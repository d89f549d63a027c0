package planner

import (
	"github.com/roach88/milestone/internal/clock"
	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/ingestmode"
	lp "github.com/roach88/milestone/internal/logicalplan"
)

const (
	rankColumn     = "legend_persistence_rank"
	countColumn    = "legend_persistence_count"
	maxDuplicates  = "MAX_DUPLICATES"
	batchStatusOK  = "DONE"
	derivedLeft    = "legend_persistence_x"
	derivedRight   = "legend_persistence_y"
	startDateAlias = "legend_persistence_start_date"
	endDateAlias   = "legend_persistence_end_date"
	origEndAlias   = "legend_persistence_original_end_date"
)

func (b *builder) stageVersioning() (ingestmode.MaxVersion, bool) {
	mv, ok := ingestmode.AsMaxVersion(ingestmode.Versioning(b.mode))
	if !ok || !mv.PerformStageVersioning {
		return ingestmode.MaxVersion{}, false
	}
	return mv, true
}

// preActions create main, batch metadata and every auxiliary table the plan
// writes to. Auxiliary tables carry no primary key: they may legitimately
// hold duplicate keys.
func (b *builder) preActions() []lp.Statement {
	stmts := []lp.Statement{
		lp.Create{Table: b.mainRef(), Fields: b.ds.Main.Schema.Fields, IfNotExists: true},
		lp.Create{Table: lp.Ref(*b.ds.Metadata), Fields: b.ds.Metadata.Schema.Fields, IfNotExists: true},
	}
	if ingestmode.FiltersDuplicates(b.mode) {
		d := *b.ds.StagingWithoutDuplicates
		stmts = append(stmts, lp.Create{Table: lp.Ref(d), Fields: unkeyed(d.Schema), IfNotExists: true})
	}
	if _, ok := b.stageVersioning(); ok {
		d := *b.ds.TempStaging
		stmts = append(stmts, lp.Create{Table: lp.Ref(d), Fields: unkeyed(d.Schema), IfNotExists: true})
	}
	if b.fromOnly {
		d := *b.ds.Temp
		stmts = append(stmts, lp.Create{Table: lp.Ref(d), Fields: unkeyed(d.Schema), IfNotExists: true})
		if b.hasDelete {
			d := *b.ds.TempWithDeleteIndicator
			stmts = append(stmts, lp.Create{Table: lp.Ref(d), Fields: unkeyed(d.Schema), IfNotExists: true})
		}
	}
	return stmts
}

// deduplicateAndVersion materializes the effective staging source. After it
// runs, every other stage reads b.src without the split filter.
func (b *builder) deduplicateAndVersion() []lp.Statement {
	var stmts []lp.Statement
	stagingCols := b.ds.Staging.Schema.Names()

	if ingestmode.FiltersDuplicates(b.mode) {
		target := *b.ds.StagingWithoutDuplicates
		existing := lp.AndOf(
			b.ms.open(b.sink),
			b.keyMatch(b.sink, b.stage),
			lp.Eq(lp.Col(b.sink, b.digest), lp.Col(b.stage, b.digest)),
		)
		if b.bitemporal {
			existing = lp.AndOf(existing, lp.Eq(lp.Col(b.sink, b.validity.FromField), lp.Col(b.stage, b.fromRef)))
		}
		sel := b.fromSrc(lp.NotOf(lp.ExistsOf(lp.Selection{Source: b.mainRef(), Where: existing})))
		sel.Fields = lp.Cols(b.stage, stagingCols)
		stmts = append(stmts, lp.Insert{Table: lp.Ref(target).As(""), Columns: stagingCols, Select: sel})
		b.src, b.srcFiltered = target, false
	}

	if mv, ok := b.stageVersioning(); ok {
		target := *b.ds.TempStaging
		inner := b.fromSrc()
		inner.Fields = append(lp.Cols(b.stage, stagingCols), lp.As(lp.DenseRank{
			PartitionBy: lp.Cols(b.stage, b.rankKeys),
			OrderByDesc: []lp.Value{lp.Col(b.stage, mv.VersioningField)},
		}, rankColumn))
		inner.Alias = b.stage
		stmts = append(stmts, lp.Insert{
			Table:   lp.Ref(target).As(""),
			Columns: stagingCols,
			Select: lp.Selection{
				Source: inner,
				Fields: lp.Cols(b.stage, stagingCols),
				Where:  lp.Eq(lp.Col(b.stage, rankColumn), lp.Num(1)),
			},
		})
		b.src, b.srcFiltered = target, false
	}
	return stmts
}

// dedupChecks return the largest number of effective staging rows sharing a
// key. The ingestor fails the batch when the result exceeds one.
func (b *builder) dedupChecks() []lp.Statement {
	if !ingestmode.FailsOnDuplicateKeys(b.mode) {
		return nil
	}
	grouped := b.fromSrc()
	grouped.Fields = append(lp.Cols(b.stage, b.rankKeys), lp.As(lp.CountAll(), countColumn))
	grouped.GroupBy = lp.Cols(b.stage, b.rankKeys)
	grouped.Alias = b.stage
	return []lp.Statement{lp.Query{Select: lp.Selection{
		Source: grouped,
		Fields: []lp.Value{lp.As(lp.Max(lp.Col(b.stage, countColumn)), maxDuplicates)},
	}}}
}

// emptyMaterialized clears the tables written during this ingest so the next
// data split starts from nothing.
func (b *builder) emptyMaterialized() []lp.Statement {
	var stmts []lp.Statement
	if ingestmode.FiltersDuplicates(b.mode) {
		stmts = append(stmts, lp.Delete{Table: lp.Ref(*b.ds.StagingWithoutDuplicates)})
	}
	if _, ok := b.stageVersioning(); ok {
		stmts = append(stmts, lp.Delete{Table: lp.Ref(*b.ds.TempStaging)})
	}
	return stmts
}

// postActions drop synthesized tables and empty staging when cleanup is
// requested.
func (b *builder) postActions() []lp.Statement {
	if !b.opts.CleanupStagingData {
		return nil
	}
	var stmts []lp.Statement
	for _, d := range b.ds.SynthesizedNames() {
		stmts = append(stmts, lp.Drop{Table: lp.Ref(d).As(""), IfExists: true, Cascade: true})
	}
	return append(stmts, lp.Delete{Table: lp.Ref(b.ds.Staging)})
}

// metadataInsert records the batch in the metadata table.
func (b *builder) metadataInsert() lp.Statement {
	md := *b.ds.Metadata
	var start lp.Value = lp.CurrentTimestamp{}
	switch {
	case b.opts.BatchStartTimestampPattern != "":
		start = lp.Str(b.opts.BatchStartTimestampPattern)
	case !b.opts.BatchTime.IsZero():
		start = lp.Str(b.opts.BatchTime.UTC().Format(clock.MetadataLayout))
	}
	var end lp.Value = lp.CurrentTimestamp{}
	if b.opts.BatchEndTimestampPattern != "" {
		end = lp.Str(b.opts.BatchEndTimestampPattern)
	}
	return lp.Insert{
		Table: lp.Ref(md).As(""),
		Columns: []string{
			dataset.MetadataTableName,
			dataset.MetadataBatchID,
			dataset.MetadataBatchStart,
			dataset.MetadataBatchEnd,
			dataset.MetadataStatus,
		},
		Select: lp.Selection{Fields: []lp.Value{
			lp.TableName{Value: b.ds.Main.Name},
			b.next,
			start,
			end,
			lp.Str(batchStatusOK),
		}},
	}
}

// incomingCount counts raw staging rows of the current split.
func (b *builder) incomingCount() lp.Statement {
	return lp.Query{Select: lp.Selection{
		Source: lp.Ref(b.ds.Staging).As(b.stage),
		Fields: []lp.Value{lp.As(lp.CountAll(), string(StatIncomingRecordCount))},
		Where:  b.splitRange(b.stage),
	}}
}

// lastBatchID reads the highest batch id recorded for main, zero when none.
func (b *builder) lastBatchID() lp.Statement {
	md := *b.ds.Metadata
	return lp.Query{Select: lp.Selection{
		Source: lp.Ref(md),
		Fields: []lp.Value{lp.As(lp.Coalesce(lp.Max(lp.Col(md.Alias, dataset.MetadataBatchID)), lp.Num(0)), "batchId")},
		Where:  lp.Eq(lp.Col(md.Alias, dataset.MetadataTableName), lp.TableName{Value: b.ds.Main.Name}),
	}}
}
