package planner

import (
	"slices"

	"github.com/roach88/milestone/internal/dataset"
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// bitemporalFromOnly derives validity through bounds by stitching staging
// starts against the open main intervals:
//
//  1. stage -> temp: each staging start runs to the next staging start of
//     the same key, bounded by the next open main start, else infinity.
//  2. main -> temp: an open main interval cut by a staging start is carried
//     forward up to the first such start.
//  3. open main rows replaced by temp rows are closed; temp is drained into
//     main.
//
// A staging row repeating an open interval's start and digest is not a
// change and takes no part in the pass.
//
// With a delete indicator a second pass removes tombstoned intervals and
// re-merges the survivors across the gaps. Intervals the first pass just
// inserted are dropped rather than closed.
func (b *builder) bitemporalFromOnly() []lp.Statement {
	temp := *b.ds.Temp
	stmts := []lp.Statement{
		b.stageToTemp(temp),
		b.mainToTemp(temp),
		b.closeFromTemp(temp),
		b.drainTemp(temp),
	}
	if b.hasDelete {
		tempDel := *b.ds.TempWithDeleteIndicator
		stmts = append(stmts,
			b.mainToTempForDeletion(tempDel),
			lp.Delete{
				Table: b.mainRef(),
				Where: lp.AndOf(b.replacedBy(tempDel), b.ms.insertedNow(b.sink, b.next, b.batchTime)),
			},
			b.closeOut(lp.AndOf(b.replacedBy(tempDel), lp.NotOf(b.ms.insertedNow(b.sink, b.next, b.batchTime)))),
			b.tempToMainForDeletion(tempDel),
			lp.Delete{Table: lp.Ref(tempDel)},
		)
	}
	return append(stmts, lp.Delete{Table: lp.Ref(temp)})
}

func (b *builder) keyFields(extra ...string) []string {
	return append(slices.Clone(b.keys), extra...)
}

// liveStaging is true for staging rows that are neither tombstones nor a
// repeat of an open main interval with the same start and digest.
func (b *builder) liveStaging(alias string) lp.Condition {
	if b.digest == "" {
		return b.notTombstone(alias)
	}
	unchanged := lp.Selection{
		Source: b.mainRef(),
		Where: lp.AndOf(
			b.ms.open(b.sink),
			b.keyMatch(b.sink, alias),
			lp.Eq(lp.Col(b.sink, b.validity.FromField), lp.Col(alias, b.fromRef)),
			lp.Eq(lp.Col(b.sink, b.digest), lp.Col(alias, b.digest)),
		),
	}
	return lp.AndOf(b.notTombstone(alias), lp.NotOf(lp.ExistsOf(unchanged)))
}

// stagingStarts selects key and validity start of live staging rows.
func (b *builder) stagingStarts(alias string) lp.Selection {
	sel := b.fromSrc(b.liveStaging(b.stage))
	sel.Fields = lp.Cols(b.stage, b.keyFields(b.fromRef))
	sel.Alias = alias
	return sel
}

func (b *builder) stageToTemp(temp dataset.Dataset) lp.Statement {
	x, y := derivedLeft, derivedRight
	fromT := b.validity.FromField

	openStarts := lp.Selection{
		Source: b.mainRef(),
		Fields: lp.Cols(b.sink, b.keyFields(fromT)),
		Where:  b.ms.open(b.sink),
		Alias:  y,
	}
	// End bound from main: the next open main start after each staging start.
	boundedByMain := lp.Selection{
		Source: lp.Join{
			Left:  b.stagingStarts(x),
			Right: openStarts,
			Kind:  lp.LeftOuterJoin,
			On:    lp.AndOf(lp.KeyMatch(x, y, b.keys), lp.Gt(lp.Col(y, fromT), lp.Col(x, b.fromRef))),
		},
		Fields: append(lp.Cols(x, b.keyFields(b.fromRef)),
			lp.As(lp.Coalesce(lp.Min(lp.Col(y, fromT)), lp.Str(dataset.InfiniteDateTime)), endDateAlias)),
		GroupBy: lp.Cols(x, b.keyFields(b.fromRef)),
		Alias:   x,
	}
	// Tighten with the next staging start inside that bound.
	ends := lp.Selection{
		Source: lp.Join{
			Left:  boundedByMain,
			Right: b.stagingStarts(y),
			Kind:  lp.LeftOuterJoin,
			On: lp.AndOf(
				lp.KeyMatch(x, y, b.keys),
				lp.Gt(lp.Col(y, b.fromRef), lp.Col(x, b.fromRef)),
				lp.Lt(lp.Col(y, b.fromRef), lp.Col(x, endDateAlias)),
			),
		},
		Fields: append(lp.Cols(x, b.keyFields(b.fromRef)),
			lp.As(lp.Coalesce(lp.Min(lp.Col(y, b.fromRef)), lp.Min(lp.Col(x, endDateAlias))), endDateAlias)),
		GroupBy: lp.Cols(x, b.keyFields(b.fromRef)),
		Alias:   y,
	}

	live := b.fromSrc(b.liveStaging(b.stage))
	live.Alias = x

	fields := append(lp.Cols(x, b.dataFields), lp.Col(x, b.fromRef), lp.Col(y, endDateAlias))
	return lp.Insert{
		Table:   lp.Ref(temp),
		Columns: b.targetColumns(),
		Select: lp.Selection{
			Source: lp.Join{
				Left:  live,
				Right: ends,
				Kind:  lp.LeftOuterJoin,
				On:    lp.AndOf(lp.KeyMatch(x, y, b.keys), lp.Eq(lp.Col(x, b.fromRef), lp.Col(y, b.fromRef))),
			},
			Fields: append(fields, b.ms.values(b.next, b.batchTime)...),
		},
	}
}

func (b *builder) mainToTemp(temp dataset.Dataset) lp.Statement {
	x, y := derivedLeft, derivedRight
	fromT, thruT := b.validity.FromField, b.validity.ThroughField

	openIntervals := lp.Selection{
		Source: b.mainRef(),
		Fields: lp.Cols(b.sink, b.keyFields(fromT, thruT)),
		Where:  b.ms.open(b.sink),
		Alias:  x,
	}
	// First staging start strictly inside each open main interval.
	cuts := lp.Selection{
		Source: lp.Join{
			Left:  openIntervals,
			Right: b.stagingStarts(y),
			Kind:  lp.InnerJoin,
			On: lp.AndOf(
				lp.KeyMatch(x, y, b.keys),
				lp.Gt(lp.Col(y, b.fromRef), lp.Col(x, fromT)),
				lp.Lt(lp.Col(y, b.fromRef), lp.Col(x, thruT)),
			),
		},
		Fields:  append(lp.Cols(x, b.keyFields(fromT)), lp.As(lp.Min(lp.Col(y, b.fromRef)), endDateAlias)),
		GroupBy: lp.Cols(x, b.keyFields(fromT)),
		Alias:   y,
	}
	openRows := lp.Selection{Source: b.mainRef(), Where: b.ms.open(b.sink), Alias: x}

	sameStart := b.fromSrc(
		lp.KeyMatch(x, b.stage, b.keys),
		lp.Eq(lp.Col(x, fromT), lp.Col(b.stage, b.fromRef)),
		b.liveStaging(b.stage),
	)

	fields := append(lp.Cols(x, b.dataFields), lp.Col(x, fromT), lp.Col(y, endDateAlias))
	return lp.Insert{
		Table:   lp.Ref(temp),
		Columns: b.targetColumns(),
		Select: lp.Selection{
			Source: lp.Join{
				Left:  openRows,
				Right: cuts,
				Kind:  lp.InnerJoin,
				On:    lp.AndOf(lp.KeyMatch(x, y, b.keys), lp.Eq(lp.Col(x, fromT), lp.Col(y, fromT))),
			},
			Fields: append(fields, b.ms.values(b.next, b.batchTime)...),
			Where:  lp.NotOf(lp.ExistsOf(sameStart)),
		},
	}
}

// replacedBy is true for open main rows whose key and start appear in temp.
func (b *builder) replacedBy(temp dataset.Dataset) lp.Condition {
	fromT := b.validity.FromField
	replaced := lp.Selection{
		Source: lp.Ref(temp),
		Where: lp.AndOf(
			b.keyMatch(b.sink, temp.Alias),
			lp.Eq(lp.Col(b.sink, fromT), lp.Col(temp.Alias, fromT)),
		),
	}
	return lp.AndOf(lp.ExistsOf(replaced), b.ms.open(b.sink))
}

// closeFromTemp closes open main rows that a temp row replaces.
func (b *builder) closeFromTemp(temp dataset.Dataset) lp.Statement {
	return b.closeOut(b.replacedBy(temp))
}

func (b *builder) drainTemp(temp dataset.Dataset) lp.Statement {
	cols := b.targetColumns()
	return lp.Insert{
		Table:   b.mainRef(),
		Columns: cols,
		Select:  lp.Selection{Source: lp.Ref(temp), Fields: lp.Cols(temp.Alias, cols)},
	}
}

// mainToTempForDeletion copies every open interval touching a tombstone
// boundary, flagged 1 when a tombstone starts at its from.
func (b *builder) mainToTempForDeletion(tempDel dataset.Dataset) lp.Statement {
	x, y := derivedLeft, derivedRight
	fromT, thruT := b.validity.FromField, b.validity.ThroughField

	touched := lp.Selection{
		Source: b.mainRef(),
		Where: lp.AndOf(
			b.ms.open(b.sink),
			lp.ExistsOf(b.fromSrc(
				b.keyMatch(b.sink, b.stage),
				lp.OrOf(
					lp.Eq(lp.Col(b.sink, fromT), lp.Col(b.stage, b.fromRef)),
					lp.Eq(lp.Col(b.sink, thruT), lp.Col(b.stage, b.fromRef)),
				),
				b.tombstone(b.stage),
			)),
		),
		Alias: x,
	}
	tombstones := b.fromSrc(b.tombstone(b.stage))
	tombstones.Alias = y

	fields := append(lp.Cols(x, b.dataFields), lp.Col(x, fromT), lp.Col(x, thruT))
	fields = append(fields, b.ms.values(b.next, b.batchTime)...)
	fields = append(fields, lp.Case{
		When: lp.IsNull{Value: lp.Col(y, b.deleteInd.Field)},
		Then: lp.Num(0),
		Else: lp.Num(1),
	})
	return lp.Insert{
		Table:   lp.Ref(tempDel),
		Columns: append(b.targetColumns(), dataset.DeleteIndicatorColumn),
		Select: lp.Selection{
			Source: lp.Join{
				Left:  touched,
				Right: tombstones,
				Kind:  lp.LeftOuterJoin,
				On:    lp.AndOf(lp.KeyMatch(x, y, b.keys), lp.Eq(lp.Col(x, fromT), lp.Col(y, b.fromRef))),
			},
			Fields: fields,
		},
	}
}

// tempToMainForDeletion writes the surviving intervals back. Each survivor
// ends at the next survivor's start, extended over the tombstoned intervals
// in between.
func (b *builder) tempToMainForDeletion(tempDel dataset.Dataset) lp.Statement {
	x, y := derivedLeft, derivedRight
	fromT, thruT := b.validity.FromField, b.validity.ThroughField
	flag := dataset.DeleteIndicatorColumn

	survivors := lp.Selection{
		Source: lp.Join{
			Left:  lp.Ref(tempDel).As(x),
			Right: lp.Ref(tempDel).As(y),
			Kind:  lp.LeftOuterJoin,
			On: lp.AndOf(
				lp.KeyMatch(x, y, b.keys),
				lp.Gt(lp.Col(y, fromT), lp.Col(x, fromT)),
				lp.Eq(lp.Col(y, flag), lp.Num(0)),
			),
		},
		Fields: append(lp.Cols(x, b.dataFields),
			lp.As(lp.Col(x, fromT), startDateAlias),
			lp.As(lp.Col(x, thruT), origEndAlias),
			lp.As(lp.Coalesce(lp.Min(lp.Col(y, fromT)), lp.Str(dataset.InfiniteDateTime)), endDateAlias),
		),
		Where:   lp.Eq(lp.Col(x, flag), lp.Num(0)),
		GroupBy: lp.Cols(x, append(slices.Clone(b.dataFields), fromT, thruT)),
		Alias:   x,
	}

	fields := append(lp.Cols(x, b.dataFields),
		lp.Col(x, startDateAlias),
		lp.Coalesce(lp.Max(lp.Col(y, thruT)), lp.Col(x, origEndAlias)),
	)
	return lp.Insert{
		Table:   b.mainRef(),
		Columns: b.targetColumns(),
		Select: lp.Selection{
			Source: lp.Join{
				Left:  survivors,
				Right: lp.Ref(tempDel).As(y),
				Kind:  lp.LeftOuterJoin,
				On: lp.AndOf(
					lp.KeyMatch(x, y, b.keys),
					lp.Gt(lp.Col(y, thruT), lp.Col(x, startDateAlias)),
					lp.Le(lp.Col(y, thruT), lp.Col(x, endDateAlias)),
					lp.Ne(lp.Col(y, flag), lp.Num(0)),
				),
			},
			Fields:  append(fields, b.ms.values(b.next, b.batchTime)...),
			GroupBy: lp.Cols(x, append(slices.Clone(b.dataFields), startDateAlias, origEndAlias)),
		},
	}
}
