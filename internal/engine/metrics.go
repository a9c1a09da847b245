// Package engine — metrics.go registers the Prometheus metrics owned by the
// query pipeline.
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineMetrics holds the Prometheus metrics owned by the engine. A single
// instance is created in New and stored on Engine so that tests can inject a
// fresh prometheus.Registry without polluting the default one.
type engineMetrics struct {
	// queriesTotal counts completed Answer calls, partitioned by outcome:
	// "ok", "cached", "validation_error", "rate_limited", or "backend_error".
	queriesTotal *prometheus.CounterVec

	// cacheEventsTotal counts result-cache interactions, partitioned by
	// event: "hit", "miss", or "store".
	cacheEventsTotal *prometheus.CounterVec

	// queryDurationSeconds records the wall-clock duration of the full
	// retrieval-and-generation pipeline for non-cached queries.
	queryDurationSeconds prometheus.Histogram
}

// newEngineMetrics registers all engine metrics against reg. promauto.With
// registers into the provided registry rather than the global default, which
// keeps unit tests hermetic.
func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	factory := promauto.With(reg)

	return &engineMetrics{
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagent",
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Total number of answered queries, partitioned by outcome.",
		}, []string{"outcome"}),

		cacheEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagent",
			Subsystem: "engine",
			Name:      "cache_events_total",
			Help:      "Total result-cache interactions, partitioned by event.",
		}, []string{"event"}),

		queryDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pagent",
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of the retrieval-and-generation pipeline.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}
