package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(batchRunsTotal, batchDocumentsTotal) }

var batchRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "batch_runs_total",
		Help: "Batch runs by terminal status (completed/cancelled/blocked).",
	},
	[]string{"status"},
)

var batchDocumentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "batch_documents_total",
		Help: "Per-document outcomes inside batch runs.",
	},
	[]string{"outcome"},
)

func IncBatchRun(status string) {
	batchRunsTotal.WithLabelValues(norm(status)).Inc()
}

func IncBatchDocument(outcome string) {
	batchDocumentsTotal.WithLabelValues(norm(outcome)).Inc()
}
