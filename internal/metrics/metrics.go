package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// StageDuration tracks time spent per pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pitchside",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent in each upload pipeline stage",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	// ActivePipelines tracks currently running upload pipelines.
	ActivePipelines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pitchside",
			Name:      "active_pipelines",
			Help:      "Number of upload pipelines currently running",
		},
	)

	// UploadsInitiated counts uploads that passed preconditions.
	UploadsInitiated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pitchside",
			Name:      "uploads_initiated_total",
			Help:      "Total number of uploads initiated",
		},
	)

	// UploadsCompleted counts pipelines that reached a terminal state.
	UploadsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pitchside",
			Name:      "uploads_completed_total",
			Help:      "Total number of upload pipelines completed",
		},
	)

	// AnalysesTotal counts analysis invocations by outcome.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitchside",
			Name:      "analyses_total",
			Help:      "Total number of AI analyses by outcome",
		},
		[]string{"status"},
	)

	// DuplicatesResolved counts duplicate records deleted by the
	// resolver.
	DuplicatesResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pitchside",
			Name:      "duplicates_resolved_total",
			Help:      "Total number of duplicate video records deleted",
		},
	)

	// OrphansSwept counts orphaned binaries removed by the sweeper.
	OrphansSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pitchside",
			Name:      "orphans_swept_total",
			Help:      "Total number of orphaned storage objects deleted",
		},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitchside",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pitchside",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthFailures counts authentication failures by reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitchside",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
)

// RecordAnalysis records an analysis outcome.
func RecordAnalysis(status string) {
	AnalysesTotal.WithLabelValues(status).Inc()
}
