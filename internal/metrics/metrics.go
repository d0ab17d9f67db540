package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the tile pipeline. All vectors
// are labelled by layer so multiple loaders can share one registry.
type Metrics struct {
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheErrors    *prometheus.CounterVec
	Fetches        *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	OfflineMisses  *prometheus.CounterVec
	LoadDuration   *prometheus.HistogramVec
}

// New registers the pipeline metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a private registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilegate_cache_hits_total",
			Help: "Tile requests served from the persistent cache.",
		}, []string{"layer"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilegate_cache_misses_total",
			Help: "Tile requests not found in the persistent cache.",
		}, []string{"layer"}),
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilegate_cache_errors_total",
			Help: "Cache operations that failed and were downgraded to miss/no-op.",
		}, []string{"layer", "op"}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilegate_fetches_total",
			Help: "Network tile fetches by outcome.",
		}, []string{"layer", "outcome"}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilegate_decode_failures_total",
			Help: "Tile payloads that failed to decode.",
		}, []string{"layer"}),
		OfflineMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilegate_offline_misses_total",
			Help: "Tile requests rejected because offline mode was active and the tile was not cached.",
		}, []string{"layer"}),
		LoadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tilegate_load_duration_seconds",
			Help:    "End-to-end tile load duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"layer"}),
	}
}
