package selector

import "github.com/prometheus/client_golang/prometheus"

var (
	selections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "selector",
			Name:      "selections_total",
			Help:      "The total number of vendor selections by chosen vendor.",
		},
		[]string{"vendor"},
	)
	failovers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "selector",
			Name:      "failovers_total",
			Help:      "The total number of selections that skipped a failing vendor.",
		},
		[]string{"from", "to"},
	)
	failureReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "selector",
			Name:      "failure_reports_total",
			Help:      "The total number of vendor failures reported by callers.",
		},
		[]string{"vendor"},
	)
)

func init() {
	prometheus.MustRegister(selections, failovers, failureReports)
}
