package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	jobOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "The total number of jobs processed by outcome status.",
		},
		[]string{"status"},
	)
	backoffSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "payrecon",
			Subsystem: "worker",
			Name:      "backoff_seconds",
			Help:      "Backoff waited before requeueing a job.",
			Buckets:   []float64{1, 2, 4, 8, 16, 30},
		},
	)
	passes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "worker",
			Name:      "passes_total",
			Help:      "The total number of worker passes.",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(jobOutcomes, backoffSeconds, passes)
}
