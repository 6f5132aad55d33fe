package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Aggregation metrics
	AggregationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdigest_aggregation_runs_total",
			Help: "Total aggregation runs by outcome",
		},
		[]string{"outcome"},
	)

	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workdigest_aggregation_duration_seconds",
			Help:    "Aggregation run duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	RecordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdigest_records_total",
			Help: "Raw records seen by the aggregation pipeline, by stage",
		},
		[]string{"stage"},
	)

	LowSampleRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workdigest_low_sample_runs_total",
			Help: "Aggregation runs whose settled record count was below the configured minimum",
		},
	)

	LastCaptureCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workdigest_last_capture_count",
			Help: "Capture count of the most recent aggregation",
		},
	)

	// Storage metrics
	RawLinesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdigest_raw_lines_skipped_total",
			Help: "Raw log lines skipped because they failed to parse",
		},
		[]string{"backend"},
	)

	FeaturesSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdigest_features_saved_total",
			Help: "Daily summaries persisted",
		},
		[]string{"backend"},
	)

	// Cache metrics
	FeaturesCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workdigest_features_cache_hits_total",
			Help: "Features cache hits",
		},
	)

	FeaturesCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workdigest_features_cache_misses_total",
			Help: "Features cache misses",
		},
	)

	// Notification metrics
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workdigest_notifications_total",
			Help: "Desktop notifications by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		AggregationRunsTotal,
		AggregationDuration,
		RecordsProcessed,
		LowSampleRuns,
		LastCaptureCount,
		RawLinesSkipped,
		FeaturesSaved,
		FeaturesCacheHits,
		FeaturesCacheMisses,
		NotificationsSent,
	)
}
