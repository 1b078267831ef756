// Package server exposes the transaction kernel over ZeroMQ and publishes
// Prometheus metrics for it.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the kernel server.
type Metrics struct {
	// Commit metrics
	CommitsTotal     prometheus.Counter
	CommitsFailed    prometheus.Counter
	CommitLatency    prometheus.Histogram
	ActionsPerCommit prometheus.Histogram

	// Write metrics
	FilesWritten  prometheus.Counter
	BytesWritten  prometheus.Counter
	OrphanedFiles prometheus.Counter

	// Ingest metrics
	IngestRequestsTotal *prometheus.CounterVec
	IngestDuration      prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		CommitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Total number of successful commits",
		}),
		CommitsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_failed_total",
			Help:      "Total number of failed commits",
		}),
		CommitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_latency_seconds",
			Help:      "Full begin-to-commit latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		ActionsPerCommit: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actions_per_commit",
			Help:      "Number of actions in each committed log entry",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),

		FilesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Total number of data files written",
		}),
		BytesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total bytes of data files written",
		}),
		OrphanedFiles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_files_total",
			Help:      "Data files written but never referenced by a commit",
		}),

		IngestRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_requests_total",
			Help:      "Total ingest requests by status",
		}, []string{"status"}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end ingest request duration",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// RecordCommit records one commit attempt.
func (m *Metrics) RecordCommit(success bool, numActions int, duration time.Duration) {
	if success {
		m.CommitsTotal.Inc()
		m.ActionsPerCommit.Observe(float64(numActions))
	} else {
		m.CommitsFailed.Inc()
	}
	m.CommitLatency.Observe(duration.Seconds())
}

// RecordFile records one written data file.
func (m *Metrics) RecordFile(size int64) {
	m.FilesWritten.Inc()
	m.BytesWritten.Add(float64(size))
}

// RecordIngest records one ingest request.
func (m *Metrics) RecordIngest(status string, duration time.Duration) {
	m.IngestRequestsTotal.WithLabelValues(status).Inc()
	m.IngestDuration.Observe(duration.Seconds())
}

// MetricsServer runs an HTTP server exposing /metrics endpoint.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a new metrics server on the given address.
func NewMetricsServer(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start starts the metrics server (blocking).
func (s *MetricsServer) Start() error {
	return s.server.ListenAndServe()
}

// StartAsync starts the metrics server in a goroutine.
func (s *MetricsServer) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop gracefully stops the metrics server.
func (s *MetricsServer) Stop() error {
	return s.server.Close()
}
