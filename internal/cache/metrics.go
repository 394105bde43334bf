package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache health is observable but never load-bearing: every counter here
// records a degradation the request path already absorbed.
var (
	hits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridlog_cache_hits_total",
		Help: "Responses served from the cache.",
	})
	misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridlog_cache_misses_total",
		Help: "Lookups that fell through to the store, including errors and open-breaker short circuits.",
	})
	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridlog_cache_evictions_total",
		Help: "Keys explicitly evicted after an entry mutation.",
	})
	cacheErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridlog_cache_errors_total",
		Help: "Redis operations that failed and were absorbed as misses.",
	})
)
