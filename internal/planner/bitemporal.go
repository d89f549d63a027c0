package planner

import (
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// validityMatch equates the main validity interval with the staging
// references. through is only compared when staging supplies it.
func (b *builder) validityMatch(sink, stage string, withThrough bool) lp.Condition {
	from := lp.Eq(lp.Col(sink, b.validity.FromField), lp.Col(stage, b.fromRef))
	if !withThrough || b.thruRef == "" {
		return from
	}
	return lp.AndOf(from, lp.Eq(lp.Col(sink, b.validity.ThroughField), lp.Col(stage, b.thruRef)))
}

// bitemporalDelta handles staging that supplies both validity bounds. A key
// is the business key plus validity from; a changed digest, a moved through
// bound or a tombstone closes the open version.
func (b *builder) bitemporalDelta() []lp.Statement {
	changed := lp.OrOf(
		lp.Ne(lp.Col(b.sink, b.digest), lp.Col(b.stage, b.digest)),
		lp.Ne(lp.Col(b.sink, b.validity.ThroughField), lp.Col(b.stage, b.thruRef)),
		b.tombstone(b.stage),
	)
	closeWhere := lp.AndOf(
		b.ms.open(b.sink),
		lp.ExistsOf(b.fromSrc(b.keyMatch(b.sink, b.stage), b.validityMatch(b.sink, b.stage, false), changed)),
	)

	insertSel := b.fromSrc(
		lp.NotOf(lp.ExistsOf(lp.Selection{
			Source: b.mainRef(),
			Where: lp.AndOf(
				b.ms.open(b.sink),
				b.keyMatch(b.sink, b.stage),
				b.validityMatch(b.sink, b.stage, true),
				lp.Eq(lp.Col(b.sink, b.digest), lp.Col(b.stage, b.digest)),
			),
		})),
		b.notTombstone(b.stage),
	)
	insertSel.Fields = b.stagingProjection(b.stage)

	return []lp.Statement{
		b.closeOut(closeWhere),
		lp.Insert{Table: b.mainRef(), Columns: b.targetColumns(), Select: insertSel},
	}
}

// bitemporalSnapshot treats staging as the complete set of current
// intervals: open rows without an identical staging interval are closed and
// staging intervals without an identical open row are inserted.
func (b *builder) bitemporalSnapshot() []lp.Statement {
	identical := func() lp.Condition {
		return lp.AndOf(
			b.keyMatch(b.sink, b.stage),
			b.validityMatch(b.sink, b.stage, true),
			lp.Eq(lp.Col(b.sink, b.digest), lp.Col(b.stage, b.digest)),
		)
	}
	closeWhere := lp.AndOf(b.ms.open(b.sink), lp.NotOf(lp.ExistsOf(b.fromSrc(identical()))))

	insertSel := b.fromSrc(lp.NotOf(lp.ExistsOf(lp.Selection{
		Source: b.mainRef(),
		Where:  lp.AndOf(b.ms.open(b.sink), identical()),
	})))
	insertSel.Fields = b.stagingProjection(b.stage)

	return []lp.Statement{
		b.closeOut(closeWhere),
		lp.Insert{Table: b.mainRef(), Columns: b.targetColumns(), Select: insertSel},
	}
}
