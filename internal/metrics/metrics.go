// Package metrics provides Prometheus metrics for tainit-daily runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the processor. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// File and row metrics
	FilesTotal       *prometheus.CounterVec
	RowsRead         prometheus.Counter
	RowsSkipped      prometheus.Counter
	RecordsAssembled prometheus.Counter

	// Persistence metrics
	RecordsUpserted prometheus.Counter
	UpsertDuration  prometheus.Histogram
	RowsPurged      *prometheus.CounterVec
	ArtifactBytes   *prometheus.HistogramVec

	// Error metrics
	StorageErrors *prometheus.CounterVec
	StoreErrors   *prometheus.CounterVec
	AuditErrors   prometheus.Counter
	RetryAttempts *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Address for metrics HTTP server (e.g., ":9090")
}

// New creates metrics registered on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tainit_daily"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a run",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
			},
			[]string{"mode"},
		),
		FilesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Input files by processing status",
			},
			[]string{"status"},
		),
		RowsRead: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_read_total",
				Help:      "Raw rows read from input files",
			},
		),
		RowsSkipped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_skipped_total",
				Help:      "Raw rows skipped by the assembler",
			},
		),
		RecordsAssembled: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_assembled_total",
				Help:      "Daily cell records produced",
			},
		),
		RecordsUpserted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_upserted_total",
				Help:      "Daily cell records sent to the store",
			},
		),
		UpsertDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upsert_duration_seconds",
				Help:      "Time to upsert one batch into the store",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		RowsPurged: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_purged_total",
				Help:      "Rows deleted by purge operations",
			},
			[]string{"mode"},
		),
		ArtifactBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "artifact_bytes",
				Help:      "Size of written artifacts in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 15), // 1KB to ~32MB
			},
			[]string{"format"},
		),
		StorageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of artifact write errors",
			},
			[]string{"backend"},
		),
		StoreErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of store errors",
			},
			[]string{"operation"},
		),
		AuditErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_errors_total",
				Help:      "Total number of audit emission errors",
			},
		),
		RetryAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"operation"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

func mode(persist bool) string {
	if persist {
		return "persist"
	}
	return "test"
}

// ObserveRun records the outcome and duration of a run.
func (m *Metrics) ObserveRun(persist, ok bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.RunsTotal.WithLabelValues(mode(persist), outcome).Inc()
	m.RunDuration.WithLabelValues(mode(persist)).Observe(seconds)
}

// IncFiles counts a file by status ("ok" or "skipped").
func (m *Metrics) IncFiles(status string) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(status).Inc()
}

// AddRows records the row outcome of one file.
func (m *Metrics) AddRows(read, skipped, assembled int) {
	if m == nil {
		return
	}
	m.RowsRead.Add(float64(read))
	m.RowsSkipped.Add(float64(skipped))
	m.RecordsAssembled.Add(float64(assembled))
}

// ObserveUpsert records a successful upsert.
func (m *Metrics) ObserveUpsert(records int, seconds float64) {
	if m == nil {
		return
	}
	m.RecordsUpserted.Add(float64(records))
	m.UpsertDuration.Observe(seconds)
}

// AddPurged records rows deleted by a purge.
func (m *Metrics) AddPurged(mode string, rows int64) {
	if m == nil {
		return
	}
	m.RowsPurged.WithLabelValues(mode).Add(float64(rows))
}

// ObserveArtifact records the size of a written artifact.
func (m *Metrics) ObserveArtifact(format string, bytes int) {
	if m == nil {
		return
	}
	m.ArtifactBytes.WithLabelValues(format).Observe(float64(bytes))
}

// IncStorageErrors increments the artifact write errors counter.
func (m *Metrics) IncStorageErrors(backend string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(backend).Inc()
}

// IncStoreErrors increments the store errors counter.
func (m *Metrics) IncStoreErrors(operation string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(operation).Inc()
}

// IncAuditErrors increments the audit errors counter.
func (m *Metrics) IncAuditErrors() {
	if m == nil {
		return
	}
	m.AuditErrors.Inc()
}

// IncRetryAttempts increments the retry attempts counter.
func (m *Metrics) IncRetryAttempts(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}
