package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index sync worker metrics.
var (
	SyncJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dirdex",
			Name:      "sync_jobs_total",
			Help:      "Index sync jobs by outcome",
		},
		[]string{"result"}, // "ok" / "retry" / "failed" / "dropped"
	)

	SyncQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dirdex",
			Name:      "sync_queue_depth",
			Help:      "Jobs waiting in the index sync queue",
		},
	)

	KeywordIndexDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dirdex",
			Name:      "keyword_index_documents",
			Help:      "Documents in the in-memory keyword index",
		},
	)

	KeywordRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dirdex",
			Name:      "keyword_rebuild_duration_seconds",
			Help:      "Full keyword index rebuild duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers sync metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(SyncJobsTotal)
	prometheus.MustRegister(SyncQueueDepth)
	prometheus.MustRegister(KeywordIndexDocuments)
	prometheus.MustRegister(KeywordRebuildDuration)
	syncMetricsRegistered = true
}
