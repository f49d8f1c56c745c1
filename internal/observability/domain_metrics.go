package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text2sql_cache_lookups_total",
			Help: "Total number of query cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
	cacheStoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "text2sql_cache_store_errors_total",
			Help: "Total number of cache store failures degraded to miss/no-op.",
		},
	)
	generationLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "text2sql_generation_latency_seconds",
			Help:    "Latency of generation service calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	generationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "text2sql_generation_failures_total",
			Help: "Total number of failed generation service calls.",
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "text2sql_active_sessions",
			Help: "Current number of authenticated sessions holding a database connection.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cacheLookupsTotal,
		cacheStoreErrorsTotal,
		generationLatencySeconds,
		generationFailuresTotal,
		activeSessions,
	)
}

func ObserveCacheLookup(outcome string) {
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

func IncrementCacheStoreError() {
	cacheStoreErrorsTotal.Inc()
}

func ObserveGeneration(elapsed time.Duration, err error) {
	generationLatencySeconds.Observe(elapsed.Seconds())
	if err != nil {
		generationFailuresTotal.Inc()
	}
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
