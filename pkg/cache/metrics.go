package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits per collection
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaxflow_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"collection"},
	)

	// CacheMisses tracks cache misses per collection
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaxflow_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"collection"},
	)

	// CacheInvalidations tracks keys dropped after mutations, per collection
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaxflow_cache_invalidated_keys_total",
			Help: "Total number of cached responses dropped after mutations",
		},
		[]string{"collection"},
	)

	// CacheEntryBytes tracks the size of stored entries
	CacheEntryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relaxflow_cache_entry_bytes",
			Help:    "Size of stored cache entries in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match/If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relaxflow_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relaxflow_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaxflow_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "revalidate", "invalidate"
	)
)
