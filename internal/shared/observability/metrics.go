package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duchain_resolve_total",
		Help: "Total number of identifier resolutions by requested kind and outcome.",
	}, []string{"kind", "outcome"})

	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "duchain_resolve_seconds",
		Help:    "Time spent resolving a single identifier.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ImportsRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duchain_imports_registered_total",
		Help: "Total number of cross-unit imports registered by index fallback.",
	})

	StaleHandlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duchain_stale_handles_total",
		Help: "Total number of symbol table handles skipped because their unit was not loaded.",
	})

	IndexLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duchain_index_lookups_total",
		Help: "Total number of symbol table lookups by backend.",
	}, []string{"backend"})

	IndexCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duchain_index_cache_hits_total",
		Help: "Total number of symbol table lookups served from the read cache.",
	})

	IndexEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "duchain_index_entries",
		Help: "Current number of handles in the symbol table.",
	}, []string{"backend"})

	UnitsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duchain_units_loaded",
		Help: "Current number of translation units loaded in the chain store.",
	})

	IndexingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "duchain_indexing_seconds",
		Help:    "Time spent parsing and publishing a translation unit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"origin"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duchain_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	ReindexThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duchain_reindex_throttled_total",
		Help: "Total number of re-index batches delayed by the rate limiter.",
	})
)
