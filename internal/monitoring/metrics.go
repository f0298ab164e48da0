package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "payrecon",
			Subsystem: "queue",
			Name:      "jobs",
			Help:      "Current number of jobs by status.",
		},
		[]string{"status"},
	)
	cacheGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "payrecon",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cached results by layer.",
		},
		[]string{"layer"},
	)
	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "monitoring",
			Name:      "alerts_total",
			Help:      "The total number of alerts raised by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(jobsGauge, cacheGauge, alertsTotal)
}
