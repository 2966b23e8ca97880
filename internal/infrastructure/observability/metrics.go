package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billplz_gateway_calls_total",
			Help: "Total number of outbound Billplz API calls",
		},
		[]string{"operation", "status"},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook deliveries by result",
		},
		[]string{"tenant", "result"},
	)
)

// InitMetrics registers the service collectors. The router exposes them on
// GET /metrics.
func InitMetrics() {
	prometheus.MustRegister(RepositoryCalls, RepositoryDuration, GatewayCalls, WebhookDeliveries)
}
