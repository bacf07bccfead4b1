package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search engine Prometheus metrics.
var (
	StoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "observatory",
			Name:      "store_requests_total",
			Help:      "Total number of document-store requests",
		},
		[]string{"kind", "status"},
	)

	StoreRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "observatory",
			Name:      "store_request_duration_seconds",
			Help:      "Document-store request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	AggregationChunksSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "observatory",
			Name:      "aggregation_chunks_skipped_total",
			Help:      "Aggregation chunks skipped after request failure",
		},
	)

	StaleResponsesDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "observatory",
			Name:      "stale_responses_discarded_total",
			Help:      "Store responses discarded because the query epoch moved on",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers engine metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(StoreRequestsTotal)
	prometheus.MustRegister(StoreRequestDuration)
	prometheus.MustRegister(AggregationChunksSkippedTotal)
	prometheus.MustRegister(StaleResponsesDiscardedTotal)
	searchMetricsRegistered = true
}
