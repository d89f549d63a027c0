package planner

import (
	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/ingestmode"
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// milestones renders transaction milestoning for one of the three
// TransactionMilestoning variants. Batch ids, when present, define "open";
// timestamps are maintained alongside.
type milestones struct {
	batchIn, batchOut string
	timeIn, timeOut   string
	hasBatch, hasTime bool
}

func newMilestones(tm ingestmode.TransactionMilestoning) milestones {
	var m milestones
	m.batchIn, m.batchOut, m.hasBatch = ingestmode.BatchIDFields(tm)
	m.timeIn, m.timeOut, m.hasTime = ingestmode.DateTimeFields(tm)
	return m
}

func (m milestones) columns() []string {
	var cols []string
	if m.hasBatch {
		cols = append(cols, m.batchIn, m.batchOut)
	}
	if m.hasTime {
		cols = append(cols, m.timeIn, m.timeOut)
	}
	return cols
}

// open is true for the current version of a row.
func (m milestones) open(alias string) lp.Condition {
	if m.hasBatch {
		return lp.Eq(lp.Col(alias, m.batchOut), lp.Num(dataset.InfiniteBatchID))
	}
	return lp.Eq(lp.Col(alias, m.timeOut), lp.Str(dataset.InfiniteDateTime))
}

// values are the milestoning values of a freshly inserted row, aligned with
// columns.
func (m milestones) values(next, batchTime lp.Value) []lp.Value {
	var vals []lp.Value
	if m.hasBatch {
		vals = append(vals, next, lp.Num(dataset.InfiniteBatchID))
	}
	if m.hasTime {
		vals = append(vals, batchTime, lp.Str(dataset.InfiniteDateTime))
	}
	return vals
}

// closeOut are the assignments that end the current version.
func (m milestones) closeOut(prev, batchTime lp.Value) []lp.Assignment {
	var set []lp.Assignment
	if m.hasBatch {
		set = append(set, lp.Assignment{Column: m.batchOut, Value: prev})
	}
	if m.hasTime {
		set = append(set, lp.Assignment{Column: m.timeOut, Value: batchTime})
	}
	return set
}

// insertedNow is true for rows inserted by the current batch.
func (m milestones) insertedNow(alias string, next, batchTime lp.Value) lp.Condition {
	if m.hasBatch {
		return lp.Eq(lp.Col(alias, m.batchIn), next)
	}
	return lp.Eq(lp.Col(alias, m.timeIn), batchTime)
}

// closedNow is true for rows closed by the current batch.
func (m milestones) closedNow(alias string, prev, batchTime lp.Value) lp.Condition {
	if m.hasBatch {
		return lp.Eq(lp.Col(alias, m.batchOut), prev)
	}
	return lp.Eq(lp.Col(alias, m.timeOut), batchTime)
}
