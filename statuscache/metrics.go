package statuscache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "statusproxy_cache_hits",
	Help: "Number of status reads served from cache",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "statusproxy_cache_misses",
	Help: "Number of status reads that required an upstream fetch",
})

var requestsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "statusproxy_cache_requests_coalesced",
	Help: "Number of status reads that shared another request's in-flight fetch",
})

var upstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "statusproxy_upstream_errors",
	Help: "Number of upstream fetches that failed (and were not cached)",
})
