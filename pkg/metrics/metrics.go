// Package metrics provides Prometheus metrics for snapshot exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusInvalid = "invalid"

	// StatusRetrying counts export attempts that went back to the retry queue.
	StatusRetrying = "retrying"
)

var (
	// Dataset detail lookups by kind and outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lcaexport_fetch_total",
			Help: "Total number of dataset detail lookups",
		},
		[]string{"kind", "status"},
	)

	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lcaexport_builds_total",
			Help: "Total number of snapshot builds",
		},
		[]string{"status"},
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lcaexport_build_duration_seconds",
			Help:    "Time taken to build a snapshot",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SolverRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lcaexport_solver_requests_total",
			Help: "Total number of LCIA solver requests",
		},
		[]string{"status"},
	)

	ExportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lcaexport_export_jobs_total",
			Help: "Total number of processed export jobs",
		},
		[]string{"status"},
	)
)

// RecordFetch counts one dataset lookup.
func RecordFetch(kind string, ok bool) {
	status := StatusOK
	if !ok {
		status = StatusFailed
	}
	FetchTotal.WithLabelValues(kind, status).Inc()
}

// RecordBuild counts one snapshot build and its duration.
func RecordBuild(status string, duration time.Duration) {
	BuildsTotal.WithLabelValues(status).Inc()
	BuildDuration.Observe(duration.Seconds())
}
