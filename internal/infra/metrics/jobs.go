package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobRetriesTotal, jobDurationSeconds) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "processing_jobs_total",
		Help: "Processing jobs finished, labeled by type and terminal status.",
	},
	[]string{"type", "status"},
)

var jobRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "processing_job_retries_total",
		Help: "Transient-failure retries per job type.",
	},
	[]string{"type"},
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "processing_job_duration_seconds",
		Help:    "Wall time per finished job.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	},
	[]string{"type"},
)

func IncJob(jobType, status string) {
	jobsProcessedTotal.WithLabelValues(norm(jobType), norm(status)).Inc()
}

func IncJobRetry(jobType string) {
	jobRetriesTotal.WithLabelValues(norm(jobType)).Inc()
}

func ObserveJobDuration(jobType string, seconds float64) {
	jobDurationSeconds.WithLabelValues(norm(jobType)).Observe(seconds)
}
