package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// generateTotal counts generated pins by scope and result
	generateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinaccess_generate_total",
		Help: "Pins processed by the access point generator, by scope and result",
	}, []string{"scope", "result"})

	// generatePoints tracks access points per generated pin
	generatePoints = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pinaccess_generate_points",
		Help:    "Access points produced per pin",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
	}, []string{"scope"})

	// patternTotal counts class pattern searches by result
	patternTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinaccess_pattern_search_total",
		Help: "Intra-instance pattern searches by result",
	}, []string{"result"})

	// patternDuration tracks pattern search latency
	patternDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pinaccess_pattern_search_duration_seconds",
		Help:    "Intra-instance pattern search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// rowTotal counts solved row clusters by result
	rowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinaccess_row_solve_total",
		Help: "Row cluster solves by result",
	}, []string{"result"})

	// rowDuration tracks row solve latency
	rowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pinaccess_row_solve_duration_seconds",
		Help:    "Row cluster solve duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// batchTotal counts exported batches by result
	batchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinaccess_batch_total",
		Help: "Exported update batches by result",
	}, []string{"result"})

	// cacheTotal counts cache lookups and writes by key type and event
	cacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinaccess_cache_events_total",
		Help: "Cache events by key type and event",
	}, []string{"key_type", "event"})
)

// PrometheusHooks implements AccessHooks and CacheHooks on the default
// Prometheus registry.
type PrometheusHooks struct{}

// NewPrometheusHooks returns hooks backed by the package metrics.
func NewPrometheusHooks() *PrometheusHooks {
	return &PrometheusHooks{}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (*PrometheusHooks) OnGenerate(_ context.Context, scope string, points int, _ time.Duration, err error) {
	generateTotal.WithLabelValues(scope, result(err)).Inc()
	if err == nil {
		generatePoints.WithLabelValues(scope).Observe(float64(points))
	}
}

func (*PrometheusHooks) OnPatterns(_ context.Context, _ string, patterns int, d time.Duration, err error) {
	res := result(err)
	if err == nil && patterns == 0 {
		res = "empty"
	}
	patternTotal.WithLabelValues(res).Inc()
	patternDuration.Observe(d.Seconds())
}

func (*PrometheusHooks) OnRowSolve(_ context.Context, _ int, d time.Duration, err error) {
	rowTotal.WithLabelValues(result(err)).Inc()
	rowDuration.Observe(d.Seconds())
}

func (*PrometheusHooks) OnBatch(_ context.Context, _ int, err error) {
	batchTotal.WithLabelValues(result(err)).Inc()
}

func (*PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	cacheTotal.WithLabelValues(keyType, "hit").Inc()
}

func (*PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	cacheTotal.WithLabelValues(keyType, "miss").Inc()
}

func (*PrometheusHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	cacheTotal.WithLabelValues(keyType, "set").Inc()
}

var (
	_ AccessHooks = (*PrometheusHooks)(nil)
	_ CacheHooks  = (*PrometheusHooks)(nil)
)
