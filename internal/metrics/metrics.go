// Package metrics holds the Prometheus collectors of the tank sales service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	saleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tanks",
			Subsystem: "sales",
			Name:      "events_total",
			Help:      "Sale events applied to the average sales window.",
		},
		[]string{"direction"},
	)

	rowsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tanks",
			Subsystem: "sales",
			Name:      "average_rows_deleted_total",
			Help:      "Average sales rows removed after their total returned to zero.",
		},
	)

	hookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tanks",
			Subsystem: "sales",
			Name:      "hook_failures_total",
			Help:      "Reading mutations whose sale handling failed.",
		},
		[]string{"operation"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tanks",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tanks",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(saleEvents, rowsDeleted, hookFailures, httpRequests, httpDuration)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSaleEvent counts a sale applied in the given direction ("added" or "deleted").
func RecordSaleEvent(direction string) {
	saleEvents.WithLabelValues(direction).Inc()
}

// RecordRowDeleted counts an average sales row removed at zero total.
func RecordRowDeleted() {
	rowsDeleted.Inc()
}

// RecordHookFailure counts a reading mutation whose sale handling failed.
func RecordHookFailure(operation string) {
	hookFailures.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records the outcome and latency of a request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
