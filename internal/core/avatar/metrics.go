package avatar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestsTotal counts finished avatar requests by outcome.
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "avatar_requests_total",
	Help: "Avatar requests by outcome",
}, []string{"outcome"})

// CacheLookups counts response cache lookups by result (hit, miss, error).
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "avatar_cache_lookups_total",
	Help: "Response cache lookups by result",
}, []string{"result"})

var locatorResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "avatar_locator_results_total",
	Help: "Avatar locator outcomes",
}, []string{"locator", "result"})

var upstreamFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "avatar_upstream_fetch_duration_seconds",
	Help:    "Time to fetch avatar bytes from the resolved source",
	Buckets: prometheus.ExponentialBucketsRange(0.005, 30, 16),
}, []string{"status"})
