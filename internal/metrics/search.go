package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search pipeline metrics.
var (
	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dirdex",
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of individual search pipeline stages",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	SearchStageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dirdex",
			Name:      "search_stage_failures_total",
			Help:      "Search stages that failed or timed out and were degraded",
		},
		[]string{"stage"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dirdex",
			Name:      "search_requests_total",
			Help:      "Search requests by retrieval method",
		},
		[]string{"method"},
	)

	QueryParseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dirdex",
			Name:      "query_parse_cache_total",
			Help:      "Query parser cache hits and misses",
		},
		[]string{"result"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(SearchStageFailuresTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(QueryParseCacheTotal)
	searchMetricsRegistered = true
}

// ObserveStage records a stage duration and, when failed, a failure.
func ObserveStage(stage string, d time.Duration, failed bool) {
	SearchStageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		SearchStageFailuresTotal.WithLabelValues(stage).Inc()
	}
}
