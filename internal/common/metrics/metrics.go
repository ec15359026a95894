// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	RankingPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_phase_duration_seconds",
			Help:    "Duration of each ranking phase in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"phase"},
	)

	DimensionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_dimension_duration_seconds",
			Help:    "Duration of a single ranking dimension in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"dimension"},
	)

	DimensionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_dimension_fallbacks_total",
			Help: "Number of times a dimension was replaced by fallback ranks",
		},
		[]string{"dimension"},
	)

	InferenceAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_inference_attempts_total",
			Help: "Inference calls by outcome",
		},
		[]string{"outcome"},
	)

	DistanceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_distance_cache_lookups_total",
			Help: "Coordinate cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)
)
