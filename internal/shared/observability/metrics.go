package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symgraph_graph_nodes_total",
		Help: "Total number of nodes in the symbol graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symgraph_graph_edges_total",
		Help: "Total number of edges in the symbol graph.",
	})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "symgraph_extraction_seconds",
		Help:    "Time spent extracting symbols from a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "symgraph_inference_seconds",
		Help:    "Time spent on a single inference traversal.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	InferenceCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symgraph_inference_cache_hits_total",
		Help: "Total number of memoized inference results served from cache.",
	})

	InferenceCacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symgraph_inference_cache_invalidations_total",
		Help: "Total number of memoized inference entries invalidated by edge writes.",
	})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "symgraph_query_seconds",
		Help:    "Time spent executing a query, by dialect.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dialect"})

	QueryCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symgraph_query_cache_hits_total",
		Help: "Total number of query results served from the result cache.",
	})

	QueryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symgraph_query_errors_total",
		Help: "Total number of failed query executions, by error code.",
	}, []string{"code"})

	ActiveQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symgraph_realtime_active_queries",
		Help: "Number of currently active registered queries.",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symgraph_realtime_active_subscriptions",
		Help: "Number of currently active subscriptions.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "symgraph_realtime_active_connections",
		Help: "Number of currently connected realtime clients.",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symgraph_realtime_notifications_total",
		Help: "Total number of subscriber notifications pushed, by event type.",
	}, []string{"event"})

	PollTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symgraph_realtime_poll_ticks_total",
		Help: "Total number of polling ticks executed.",
	})

	WatcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symgraph_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	}, []string{"op"})

	ScanFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symgraph_scan_files_total",
		Help: "Total number of files processed by full scans.",
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "symgraph_scan_seconds",
		Help:    "Time spent on a full project scan.",
		Buckets: prometheus.DefBuckets,
	})
)
