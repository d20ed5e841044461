// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(uploadsTotal) }

var uploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coloring_uploads_total",
		Help: "Upload requests by outcome (accepted/rejected/rate_limited/busy/error).",
	},
	[]string{"outcome"},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(norm(outcome)).Inc()
}
