// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pricing metrics
	PriceFetches     *prometheus.CounterVec // by source, outcome
	PriceCacheHits   prometheus.Counter
	PriceCacheMisses prometheus.Counter

	// Snapshot metrics
	SnapshotRefreshes       *prometheus.CounterVec // by outcome
	SnapshotRefreshDuration prometheus.Histogram
	SnapshotTokens          prometheus.Gauge

	// Allocation metrics
	AllocationsTotal   *prometheus.CounterVec // by tier, outcome
	AllocationVariance prometheus.Histogram
	AllocationLines    prometheus.Histogram

	// Persistence metrics
	CredentialsPurged prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vendyz"
	}

	return &Metrics{
		PriceFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_fetches_total",
			Help:      "Price source calls by source and outcome.",
		}, []string{"source", "outcome"}),
		PriceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_hits_total",
			Help:      "Price lookups served from the cache inside the TTL.",
		}),
		PriceCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_misses_total",
			Help:      "Price lookups that required an upstream fetch.",
		}),
		SnapshotRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refreshes_total",
			Help:      "Treasury snapshot refresh cycles by outcome.",
		}, []string{"outcome"}),
		SnapshotRefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_refresh_duration_seconds",
			Help:      "Wall time of one treasury snapshot refresh.",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_tokens",
			Help:      "Funded tokens in the current treasury snapshot.",
		}),
		AllocationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Token selections by tier and outcome.",
		}, []string{"tier", "outcome"}),
		AllocationVariance: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_variance",
			Help:      "Relative variance of realized vs. target USD value.",
			Buckets:   []float64{-0.25, -0.1, -0.05, -0.01, 0, 0.01, 0.05, 0.1, 0.25},
		}),
		AllocationLines: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_lines",
			Help:      "Number of lines per selection.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		CredentialsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_purged_total",
			Help:      "Expired wallet credentials deleted by the purge job.",
		}),
	}
}
