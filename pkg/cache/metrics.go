package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"backend"},
	)

	// StoredBytes tracks serialized bytes written to the external store
	StoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_stored_bytes_total",
			Help: "Total bytes of serialized responses written to the cache",
		},
		[]string{"backend"},
	)

	// HandlerDuration tracks how long wrapped handlers take on a miss
	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apicache_handler_duration_seconds",
			Help:    "Duration of wrapped handler invocations on cache miss",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"handler"},
	)

	// Coalesced tracks callers that shared another caller's in-flight miss
	Coalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_coalesced_total",
			Help: "Total number of cache misses served by a concurrent in-flight computation",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_not_modified_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "key", "get", "set", "ping", "encode", "decode"
	)
)
