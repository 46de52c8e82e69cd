package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(aiCallsLatencyMs, aiFallbackTotal) }

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "AI call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
	},
	[]string{"provider", "path", "success"}, // path: 'text' | 'vision'
)

var aiFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_vision_fallback_total",
		Help: "Classifications that fell back to the vision path.",
	},
	[]string{"provider"},
)

func ObserveAICall(provider, path string, latencyMs int, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(path), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncVisionFallback(provider string) {
	aiFallbackTotal.WithLabelValues(norm(provider)).Inc()
}
