package ocr

import "github.com/prometheus/client_golang/prometheus"

var (
	recognitionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrecon",
			Subsystem: "ocr",
			Name:      "recognition_ops_total",
			Help:      "The total number of recognition calls by vendor and outcome.",
		},
		[]string{"vendor", "outcome"},
	)

	recognitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payrecon",
			Subsystem: "ocr",
			Name:      "recognition_duration_seconds",
			Help:      "Time taken by a recognition call, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"vendor"},
	)
)

func init() {
	prometheus.MustRegister(recognitionOps, recognitionDuration)
}
