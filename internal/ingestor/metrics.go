package ingestor

import (
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/milestone/internal/planner"
)

const metricsNamespace = "milestone"

// Metrics records ingestion outcomes. A nil *Metrics records nothing.
type Metrics struct {
	batches  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the ingestion collectors and registers them on reg.
// A nil reg returns nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batches_total",
			Help:      "Ingested batches by main table and status.",
		}, []string{"table", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_total",
			Help:      "Rows counted by the batch statistics, by main table and statistic.",
		}, []string{"table", "stat"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time spent executing one ingestion, by main table.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
	}
	reg.MustRegister(m.batches, m.rows, m.duration)
	return m
}

// observe records one committed batch. Counters cannot decrease, so
// negative statistics are left out and returned, sorted, for the caller to
// report.
func (m *Metrics) observe(r Result, elapsed time.Duration) []planner.Stat {
	var negative []planner.Stat
	for stat, n := range r.Stats {
		if n < 0 {
			negative = append(negative, stat)
		}
	}
	slices.Sort(negative)
	if m == nil {
		return negative
	}
	m.batches.WithLabelValues(r.Table, string(r.Status)).Inc()
	for stat, n := range r.Stats {
		if n > 0 {
			m.rows.WithLabelValues(r.Table, string(stat)).Add(float64(n))
		}
	}
	m.duration.WithLabelValues(r.Table).Observe(elapsed.Seconds())
	return negative
}

func (m *Metrics) failed(table string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(table, string(StatusFailed)).Inc()
}
