package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by layer and outcome.",
		},
		[]string{"layer", "outcome"},
	)

	sharedComputes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "cache",
			Name:      "shared_computes_total",
			Help:      "Cache misses that waited on another in-flight recognition of the same file.",
		},
	)
)

func init() {
	prometheus.MustRegister(lookups, sharedComputes)
}
