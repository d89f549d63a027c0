package planner

import (
	"github.com/roach88/milestone/internal/ingestmode"
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// mergeComparator is the version comparator applied at merge time, if any.
func (b *builder) mergeComparator() (string, ingestmode.VersionComparator, bool) {
	mv, ok := ingestmode.AsMaxVersion(ingestmode.Versioning(b.mode))
	if !ok {
		return "", "", false
	}
	c, ok := ingestmode.ColumnComparator(mv.Resolver)
	if !ok {
		return "", "", false
	}
	return mv.VersioningField, c, true
}

// unitemporalDelta closes open rows whose key arrives with a new digest (or
// a tombstone), then inserts the staging rows not already current.
func (b *builder) unitemporalDelta(m ingestmode.UnitemporalDelta) []lp.Statement {
	digestNe := lp.Ne(lp.Col(b.sink, b.digest), lp.Col(b.stage, b.digest))
	digestEq := lp.Eq(lp.Col(b.sink, b.digest), lp.Col(b.stage, b.digest))

	changed := lp.Condition(digestNe)
	blocked := lp.Condition(digestEq)
	if field, cmp, ok := b.mergeComparator(); ok {
		sinkVer, stageVer := lp.Col(b.sink, field), lp.Col(b.stage, field)
		if cmp == ingestmode.GreaterThanEqualTo {
			changed = lp.AndOf(digestNe, lp.Ge(stageVer, sinkVer))
			blocked = lp.OrOf(digestEq, lp.Gt(sinkVer, stageVer))
		} else {
			changed = lp.AndOf(digestNe, lp.Gt(stageVer, sinkVer))
			blocked = lp.OrOf(digestEq, lp.Ge(sinkVer, stageVer))
		}
	}
	changed = lp.OrOf(changed, b.tombstone(b.stage))

	closeWhere := []lp.Condition{b.ms.open(b.sink)}
	if b.opts.AddOptimizationFilters {
		closeWhere = append(closeWhere, b.optimizationFilters(m.OptimizationFilters)...)
	}
	closeWhere = append(closeWhere, lp.ExistsOf(b.fromSrc(b.keyMatch(b.sink, b.stage), changed)))

	insertSel := b.fromSrc(
		lp.NotOf(lp.ExistsOf(lp.Selection{
			Source: b.mainRef(),
			Where:  lp.AndOf(b.ms.open(b.sink), b.keyMatch(b.sink, b.stage), blocked),
		})),
		b.notTombstone(b.stage),
	)
	insertSel.Fields = b.stagingProjection(b.stage)

	return []lp.Statement{
		b.closeOut(lp.AndOf(closeWhere...)),
		lp.Insert{Table: b.mainRef(), Columns: b.targetColumns(), Select: insertSel},
	}
}

// optimizationFilters bound each field of main by the staging min and max.
func (b *builder) optimizationFilters(fields []string) []lp.Condition {
	var conds []lp.Condition
	for _, f := range fields {
		minSel := b.fromSrc()
		minSel.Fields = []lp.Value{lp.Min(lp.Col(b.stage, f))}
		maxSel := b.fromSrc()
		maxSel.Fields = []lp.Value{lp.Max(lp.Col(b.stage, f))}
		conds = append(conds,
			lp.Ge(lp.Col(b.sink, f), lp.Scalar(minSel)),
			lp.Le(lp.Col(b.sink, f), lp.Scalar(maxSel)),
		)
	}
	return conds
}

// unitemporalSnapshot closes open rows (within the partition scope) that
// staging no longer holds unchanged, then inserts staging rows whose digest
// is not current.
func (b *builder) unitemporalSnapshot(m ingestmode.UnitemporalSnapshot) []lp.Statement {
	unchanged := lp.ExistsOf(b.fromSrc(
		b.keyMatch(b.sink, b.stage),
		lp.Eq(lp.Col(b.sink, b.digest), lp.Col(b.stage, b.digest)),
	))
	closeWhere := lp.AndOf(b.ms.open(b.sink), lp.NotOf(unchanged), b.partitionScope(m, true))

	insertSel := b.fromSrc(lp.NotOf(lp.InSelect{
		Value: lp.Col(b.stage, b.digest),
		Select: lp.Selection{
			Source: b.mainRef(),
			Fields: []lp.Value{lp.Col(b.sink, b.digest)},
			Where:  b.ms.open(b.sink),
		},
	}))
	insertSel.Fields = b.stagingProjection(b.stage)

	return []lp.Statement{
		b.closeOut(closeWhere),
		lp.Insert{Table: b.mainRef(), Columns: b.targetColumns(), Select: insertSel},
	}
}

// partitionScope restricts main rows to the partitions the snapshot covers.
// Fields with explicit values use IN lists. Fields without values match any
// partition present in staging, unless withStaging is false (empty batch),
// in which case they impose no restriction.
func (b *builder) partitionScope(m ingestmode.UnitemporalSnapshot, withStaging bool) lp.Condition {
	var conds []lp.Condition
	var fromStaging []lp.Condition
	for _, f := range m.PartitionFields {
		if vals, ok := m.PartitionValues[f]; ok {
			conds = append(conds, lp.In{Value: lp.Col(b.sink, f), List: lp.Strs(vals)})
			continue
		}
		fromStaging = append(fromStaging, lp.Eq(lp.Col(b.sink, f), lp.Col(b.stage, f)))
	}
	if withStaging && len(fromStaging) > 0 {
		conds = append(conds, lp.ExistsOf(b.fromSrc(fromStaging...)))
	}
	return lp.AndOf(conds...)
}

// deleteAll closes every open row in scope. Used for empty snapshot batches
// under DeleteTargetData.
func (b *builder) deleteAll() []lp.Statement {
	where := b.ms.open(b.sink)
	if us, ok := b.mode.(ingestmode.UnitemporalSnapshot); ok {
		where = lp.AndOf(where, b.partitionScope(us, false))
	}
	return []lp.Statement{b.closeOut(where)}
}

