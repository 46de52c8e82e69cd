package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ocrPathTotal, ocrSubprocessSeconds) }

var ocrPathTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ocr_extractions_total",
		Help: "Extractions by path taken and outcome.",
	},
	// path: embedded|subprocess|image|plaintext|none; outcome: ok|failed|skipped
	[]string{"path", "outcome"},
)

var ocrSubprocessSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ocr_subprocess_duration_seconds",
		Help:    "Recognition subprocess wall time.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
)

func IncOCRPath(path, outcome string) {
	ocrPathTotal.WithLabelValues(norm(path), norm(outcome)).Inc()
}

func ObserveOCRSubprocess(seconds float64) {
	ocrSubprocessSeconds.Observe(seconds)
}
