// Package observability holds the Prometheus instrumentation shared by the
// ingestion pipeline and the resolution cascade.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the pipeline counters. One instance per process,
// registered once.
type Metrics struct {
	ImportsTotal       *prometheus.CounterVec
	RowsProcessed      prometheus.Counter
	RowsDropped        prometheus.Counter
	DuplicatesSkipped  prometheus.Counter
	ResolutionsTotal   *prometheus.CounterVec
	SuspenseTotal      prometheus.Counter
	ClassifierFailures prometheus.Counter
	ImportDuration     prometheus.Histogram
}

// NewMetrics builds and registers the metric set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "ingest",
			Name:      "imports_total",
			Help:      "Completed imports by source format.",
		}, []string{"format"}),
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "ingest",
			Name:      "rows_processed_total",
			Help:      "Source rows seen across all imports.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "ingest",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped for row-level failures.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "ingest",
			Name:      "duplicates_skipped_total",
			Help:      "In-file duplicate rows skipped.",
		}),
		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "resolution",
			Name:      "matches_total",
			Help:      "Vendor resolutions by strategy.",
		}, []string{"strategy"}),
		SuspenseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "resolution",
			Name:      "suspense_total",
			Help:      "Transactions routed to the suspense account.",
		}),
		ClassifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "resolution",
			Name:      "classifier_failures_total",
			Help:      "External classifier chunks that failed.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "ingest",
			Name:      "import_duration_seconds",
			Help:      "Wall time per import.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	reg.MustRegister(
		m.ImportsTotal,
		m.RowsProcessed,
		m.RowsDropped,
		m.DuplicatesSkipped,
		m.ResolutionsTotal,
		m.SuspenseTotal,
		m.ClassifierFailures,
		m.ImportDuration,
	)
	return m
}
