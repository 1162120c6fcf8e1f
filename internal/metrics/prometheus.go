package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion service

var (
	// Release fetch metrics
	AssetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nflstats_assets_total",
			Help: "Release assets seen by sync runs, by outcome",
		},
		[]string{"tag", "outcome"},
	)

	AssetFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nflstats_asset_fetch_duration_seconds",
			Help:    "Duration of release asset downloads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tag"},
	)

	// Row metrics
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nflstats_rows_total",
			Help: "Rows offered to ingestion, by table and outcome",
		},
		[]string{"table", "outcome"},
	)

	// Database metrics
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nflstats_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nflstats_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nflstats_cache_hits_total",
			Help: "Total number of query cache hits",
		},
		[]string{"query"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nflstats_cache_misses_total",
			Help: "Total number of query cache misses",
		},
		[]string{"query"},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nflstats_sync_operations_total",
			Help: "Total number of sync operations",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nflstats_sync_duration_seconds",
			Help:    "Duration of sync operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nflstats_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nflstats_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync operation",
		},
	)
)

// RecordAsset records the outcome of one release asset
func RecordAsset(tag, outcome string) {
	AssetsTotal.WithLabelValues(tag, outcome).Inc()
}

// RecordAssetFetch records a download duration
func RecordAssetFetch(tag string, duration float64) {
	AssetFetchDuration.WithLabelValues(tag).Observe(duration)
}

// RecordRows records row outcomes for a table
func RecordRows(table string, accepted, skipped, replaced, failed int) {
	RowsTotal.WithLabelValues(table, "accepted").Add(float64(accepted))
	RowsTotal.WithLabelValues(table, "skipped").Add(float64(skipped))
	RowsTotal.WithLabelValues(table, "replaced").Add(float64(replaced))
	RowsTotal.WithLabelValues(table, "failed").Add(float64(failed))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(query string) {
	CacheHitsTotal.WithLabelValues(query).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(query string) {
	CacheMissesTotal.WithLabelValues(query).Inc()
}

// RecordSync records a sync operation
func RecordSync(syncType, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
