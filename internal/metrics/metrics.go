package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_store_queries_total",
			Help: "Total number of record store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_library_store_query_duration_seconds",
			Help:    "Record store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_store_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Ingest metrics
var (
	IngestRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_ingest_runs_total",
			Help: "Total number of directory ingest runs",
		},
	)

	IngestFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_ingest_files_processed_total",
			Help: "Total number of files processed during ingest",
		},
	)

	IngestFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_ingest_files_skipped_total",
			Help: "Total number of files skipped during ingest",
		},
	)

	IngestLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_library_ingest_last_run_duration_seconds",
			Help: "Duration of the last ingest run in seconds",
		},
	)
)

// Meta index metrics
var (
	MembershipEdgesAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_membership_edges_added_total",
			Help: "Membership edges inserted by the meta index engine",
		},
		[]string{"dimension"},
	)

	MembershipEdgesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_membership_edges_removed_total",
			Help: "Membership edges deleted by the meta index engine",
		},
		[]string{"dimension"},
	)
)

// Browse metrics
var (
	BrowseStepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_browse_steps_total",
			Help: "Total number of cursor browse steps",
		},
	)

	BrowseCursorResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_browse_cursor_resets_total",
			Help: "Number of times a stale browse cursor was reset to zero",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_library_watcher_events_total",
			Help: "Filesystem watcher events by type",
		},
		[]string{"type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_library_watcher_errors_total",
			Help: "Filesystem watcher errors",
		},
	)
)
