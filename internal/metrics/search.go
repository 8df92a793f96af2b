package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchPhaseReached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timtro",
			Name:      "search_phase_reached_total",
			Help:      "Relaxation phase that produced the response",
		},
		[]string{"phase"},
	)

	SearchFusionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timtro",
			Name:      "search_fusion_total",
			Help:      "Hybrid rank-fusion outcomes",
		},
		[]string{"result"}, // "fused" / "lexical_only"
	)

	RerankTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timtro",
			Name:      "rerank_total",
			Help:      "AI rerank attempts by outcome",
		},
		[]string{"outcome"}, // "applied" / "skipped" / "failed" / "breaker_open"
	)

	RerankBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "timtro",
			Name:      "rerank_breaker_open",
			Help:      "1 when the rerank circuit breaker is open",
		},
	)

	GeocodeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timtro",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ParseAITotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timtro",
			Name:      "parse_ai_total",
			Help:      "AI parse attempts by outcome",
		},
		[]string{"outcome"}, // "applied" / "skipped" / "timeout" / "invalid"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchPhaseReached)
	prometheus.MustRegister(SearchFusionTotal)
	prometheus.MustRegister(RerankTotal)
	prometheus.MustRegister(RerankBreakerState)
	prometheus.MustRegister(GeocodeCacheTotal)
	prometheus.MustRegister(ParseAITotal)
	searchMetricsRegistered = true
}
