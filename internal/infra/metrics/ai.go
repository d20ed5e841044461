package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		imageGenerationLatencyMs,
		imageNormalizeLatencyMs,
	)
}

var (
	imageGenerationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_generation_latency_ms",
			Help:    "Image generation call latency distribution in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 80000, 160000},
		},
		[]string{"provider", "model", "success"},
	)

	imageNormalizeLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_normalize_latency_ms",
			Help:    "Upload resize/re-encode latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
	)
)

func ObserveGeneration(provider, model string, latencyMs int, success bool) {
	imageGenerationLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func ObserveNormalize(latencyMs int) {
	imageNormalizeLatencyMs.Observe(float64(latencyMs))
}
