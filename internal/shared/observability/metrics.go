package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// Tracer is the process-wide tracer for analysis spans.
var Tracer = otel.Tracer("flowlens")

// Metrics definitions
var (
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowlens_analysis_seconds",
		Help:    "Time spent analyzing a document.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	OracleQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_oracle_queries_total",
		Help: "Total number of type-oracle queries issued.",
	})

	OracleFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_oracle_failures_total",
		Help: "Total number of type-oracle queries that failed.",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_type_cache_hits_total",
		Help: "Total number of type-cache hits.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_type_cache_misses_total",
		Help: "Total number of type-cache misses, including expired entries.",
	})

	CacheEvictedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_type_cache_evicted_files_total",
		Help: "Total number of whole-file cache evictions under memory pressure.",
	})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowlens_type_cache_entries",
		Help: "Current number of cached type lookups across all files.",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowlens_graph_nodes_total",
		Help: "Number of dataflow nodes discovered in the last analysis.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
