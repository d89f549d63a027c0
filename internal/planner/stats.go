package planner

import (
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// updatedAlias is the second main alias used to pair a closed row with its
// replacement.
const updatedAlias = "sink2"

// stats builds one query per statistic. Each query returns a single row with
// a single column named after the statistic. They read main after Ingest and
// before Metadata, so the batch id is still the one Ingest used.
func (b *builder) stats() map[Stat]lp.Statement {
	closed := b.countMain(b.ms.closedNow(b.sink, b.prev, b.batchTime))
	inserted := b.countMain(b.ms.insertedNow(b.sink, b.next, b.batchTime))

	// A closed row pairs with at most one replacement: open rows are unique
	// per key (and validity start), so none of the differences below can go
	// negative.
	updated := lp.Scalar(b.countMain(b.ms.closedNow(b.sink, b.prev, b.batchTime), lp.ExistsOf(b.replacement())))
	terminated := lp.Sub(lp.Scalar(closed), updated)

	return map[Stat]lp.Statement{
		StatIncomingRecordCount: b.incomingCount(),
		StatRowsUpdated:         statQuery(StatRowsUpdated, updated),
		StatRowsInserted:        statQuery(StatRowsInserted, lp.Sub(lp.Scalar(inserted), updated)),
		StatRowsTerminated:      statQuery(StatRowsTerminated, terminated),
		StatRowsDeleted:         statQuery(StatRowsDeleted, lp.Num(0)),
	}
}

// replacement finds a row inserted by this batch for the same key (and, for
// bitemporal modes, the same validity start) as the outer sink row.
func (b *builder) replacement() lp.Selection {
	where := []lp.Condition{b.keyMatch(updatedAlias, b.sink)}
	if b.bitemporal {
		from := b.validity.FromField
		where = append(where, lp.Eq(lp.Col(updatedAlias, from), lp.Col(b.sink, from)))
	}
	where = append(where, b.ms.insertedNow(updatedAlias, b.next, b.batchTime))
	return lp.Selection{
		Source: b.mainRef().As(updatedAlias),
		Where:  lp.AndOf(where...),
	}
}

func (b *builder) countMain(conds ...lp.Condition) lp.Selection {
	return lp.Selection{
		Source: b.mainRef(),
		Fields: []lp.Value{lp.CountAll()},
		Where:  lp.AndOf(conds...),
	}
}

// statQuery unwraps a bare scalar subquery so simple counts render as a
// plain SELECT COUNT(*).
func statQuery(s Stat, v lp.Value) lp.Statement {
	if sq, ok := v.(lp.Subquery); ok {
		sel := sq.Select
		sel.Fields = []lp.Value{lp.As(sel.Fields[0], string(s))}
		return lp.Query{Select: sel}
	}
	return lp.Query{Select: lp.Selection{Fields: []lp.Value{lp.As(v, string(s))}}}
}
