package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(coloringJobsTotal, coloringJobsInFlight, coloringJobsReaped) }

var (
	coloringJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coloring_jobs_total",
			Help: "Total number of coloring jobs finished, labeled by terminal status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	coloringJobsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coloring_jobs_reaped_total",
			Help: "Jobs failed by the stale job reaper after exceeding their max age.",
		},
	)

	coloringJobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coloring_jobs_in_flight",
			Help: "Coloring jobs currently being generated.",
		},
	)
)

func IncColoringJob(status string) {
	coloringJobsTotal.WithLabelValues(norm(status)).Inc()
}

// JobStarted bumps the in-flight gauge; call the returned func when the job ends.
func JobStarted() func() {
	coloringJobsInFlight.Inc()
	return coloringJobsInFlight.Dec
}

func AddReapedJobs(n int) {
	coloringJobsReaped.Add(float64(n))
}
