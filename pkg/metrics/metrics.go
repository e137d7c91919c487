// Package metrics exposes the Prometheus registry and HTTP instrumentation
// for the API cache. Cache metrics are defined in pkg/cache next to the code
// that updates them; this package adds per-route HTTP metrics and the
// /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the API cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

var (
	// RequestsTotal counts served requests by route, method and status code
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	// RequestDuration tracks request latency by route
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apicache_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps next so its requests are counted and timed under route.
func Instrument(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		RequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(RequestsTotal.MustCurryWith(labels), next),
	)
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - apicache_hits_total{backend} (Counter): Cache hits by backend ("memory", "redis")
//   - apicache_misses_total{backend} (Counter): Cache misses by backend
//   - apicache_stored_bytes_total{backend} (Counter): Serialized bytes written to Redis
//   - apicache_handler_duration_seconds{handler} (Histogram): Wrapped handler time on a miss
//   - apicache_coalesced_total (Counter): Misses served by a concurrent in-flight call
//   - apicache_not_modified_total (Counter): 304 Not Modified responses
//   - apicache_errors_total{operation} (Counter): Cache operation errors
//
// HTTP Metrics (pkg/metrics):
//   - apicache_http_requests_total{route, method, code} (Counter): Requests served
//   - apicache_http_request_duration_seconds{route} (Histogram): Request latency
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(apicache_hits_total[5m])) /
//   (sum(rate(apicache_hits_total[5m])) + sum(rate(apicache_misses_total[5m])))
//
//   # Redis Error Rate
//   rate(apicache_errors_total{operation=~"get|set"}[5m])
//
//   # P95 Handler Latency on Miss
//   histogram_quantile(0.95, rate(apicache_handler_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(apicache_not_modified_total[5m]) / sum(rate(apicache_http_requests_total[5m]))
