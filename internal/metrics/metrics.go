// Package metrics registers the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the balance engine.
type Metrics struct {
	EntriesAppended   *prometheus.CounterVec
	DuplicateAppends  prometheus.Counter
	IntegrityErrors   prometheus.Counter
	RateLookupFailed  prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	SimplifyDuration  prometheus.Histogram
	EntriesPruned     prometheus.Counter
	RebuildsCompleted prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "balances_entries_appended_total",
			Help: "Ledger entries appended, by entry kind",
		}, []string{"kind"}),
		DuplicateAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balances_duplicate_appends_total",
			Help: "Appends absorbed as idempotent no-ops",
		}),
		IntegrityErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balances_integrity_errors_total",
			Help: "Conservation-invariant violations detected by the simplifier",
		}),
		RateLookupFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balances_rate_lookup_failures_total",
			Help: "Currency conversions that degraded to unconverted output",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balances_summary_cache_hits_total",
			Help: "Group summaries served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balances_summary_cache_misses_total",
			Help: "Group summaries recomputed on cache miss",
		}),
		SimplifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "balances_simplify_duration_seconds",
			Help:    "Time spent computing settlement plans",
			Buckets: prometheus.DefBuckets,
		}),
		EntriesPruned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balances_entries_pruned_total",
			Help: "Ledger entries removed by retention pruning",
		}),
		RebuildsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "balances_rebuilds_completed_total",
			Help: "Full balance rebuilds from ledger replay",
		}),
	}
}
