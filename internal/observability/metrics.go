package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion service.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: task, outcome={success,retryable,permanent}
	ReadingsFetched  *prometheus.CounterVec // labels: task
	ReadingsInserted *prometheus.CounterVec // labels: task
	ReadingsSkipped  *prometheus.CounterVec // labels: task, reason={missing,out_of_range,stale,duplicate,malformed}
	FetchDuration    *prometheus.HistogramVec
	RunDuration      *prometheus.HistogramVec
	TasksRunning     prometheus.Gauge

	DocumentsUpserted prometheus.Counter
	EventsPublished   prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coastwatch",
			Name:      "ingest_runs_total",
			Help:      "Completed ingest runs by task and outcome.",
		}, []string{"task", "outcome"}),
		ReadingsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coastwatch",
			Name:      "readings_fetched_total",
			Help:      "Canonical readings produced by source adapters.",
		}, []string{"task"}),
		ReadingsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coastwatch",
			Name:      "readings_inserted_total",
			Help:      "Measurement rows actually inserted (conflicts excluded).",
		}, []string{"task"}),
		ReadingsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coastwatch",
			Name:      "readings_skipped_total",
			Help:      "Readings dropped before or during upsert, by reason.",
		}, []string{"task", "reason"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coastwatch",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of one adapter fetch, network included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"task"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coastwatch",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-resolve-upsert run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		}, []string{"task"}),
		TasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coastwatch",
			Name:      "tasks_running",
			Help:      "Number of ingest tasks currently executing.",
		}),
		DocumentsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coastwatch",
			Name:      "documents_upserted_total",
			Help:      "Literature records inserted or updated in the document catalog.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coastwatch",
			Name:      "events_published_total",
			Help:      "Inserted-measurement events published to the sink topic.",
		}),
	}
}

// NewMetrics creates all service metrics and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.ReadingsFetched,
		m.ReadingsInserted,
		m.ReadingsSkipped,
		m.FetchDuration,
		m.RunDuration,
		m.TasksRunning,
		m.DocumentsUpserted,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
