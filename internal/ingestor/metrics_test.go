package ingestor

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/milestone/internal/generator"
	"github.com/roach88/milestone/internal/ingestmode"
	"github.com/roach88/milestone/internal/planner"
)

// gathered returns the value of every sample of family name, keyed by the
// sample's label values joined with ",".
func gathered(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for i, l := range m.GetLabel() {
				if i > 0 {
					key += ","
				}
				key += l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEnv(t, generator.Options{CollectStatistics: true}, plainStagingDDL, WithMetrics(NewMetrics(reg)))
	ing := Ingestion{
		Mode:     ingestmode.UnitemporalDelta{DigestField: "digest", TransactionMilestoning: ingestmode.DefaultBatchID()},
		Datasets: datasets(),
	}

	e.stage(`(1, 'alpha', 'd1')`, `(2, 'beta', 'd2')`)
	e.ingest(ing)
	e.stage(`(1, 'alpha v2', 'd1x')`)
	e.ingest(ing)

	failing := ing
	failing.Mode = ingestmode.UnitemporalDelta{
		DigestField:            "digest",
		TransactionMilestoning: ingestmode.DefaultBatchID(),
		EmptyHandling:          ingestmode.FailEmptyBatch{},
	}
	e.exec(`DELETE FROM staging`)
	_, err := e.in.Ingest(context.Background(), failing)
	require.Error(t, err)

	// label order: status, table
	assert.Equal(t, map[string]float64{"DONE,main": 2, "FAILED,main": 1},
		gathered(t, reg, "milestone_batches_total"))

	// label order: stat, table
	rows := gathered(t, reg, "milestone_rows_total")
	assert.Equal(t, float64(3), rows["incomingRecordCount,main"])
	assert.Equal(t, float64(2), rows["rowsInserted,main"])
	assert.Equal(t, float64(1), rows["rowsUpdated,main"])
	assert.NotContains(t, rows, "rowsDeleted,main")

	assert.Equal(t, map[string]float64{"main": 2}, gathered(t, reg, "milestone_ingest_duration_seconds"))
}

func TestMetrics_Nil(t *testing.T) {
	assert.Nil(t, NewMetrics(nil))

	var m *Metrics
	assert.NotPanics(t, func() {
		m.observe(Result{Table: "main", Status: StatusDone}, 0)
		m.failed("main")
	})
}

func TestMetrics_NegativeStatsLeftOut(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := Result{Table: "main", Status: StatusDone, Stats: map[planner.Stat]int64{
		planner.StatRowsUpdated:    2,
		planner.StatRowsTerminated: -3,
		planner.StatRowsInserted:   -1,
	}}

	assert.Equal(t, []planner.Stat{planner.StatRowsInserted, planner.StatRowsTerminated}, m.observe(r, 0))
	assert.Equal(t, map[string]float64{"rowsUpdated,main": 2}, gathered(t, reg, "milestone_rows_total"))

	var disabled *Metrics
	assert.Equal(t, []planner.Stat{planner.StatRowsInserted, planner.StatRowsTerminated}, disabled.observe(r, 0))
}
