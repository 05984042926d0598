package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	operationDuration *prometheus.HistogramVec
	fetchErrors       *prometheus.CounterVec
	healthyExchanges  prometheus.Gauge
	opportunities     *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exfuse_operation_duration_seconds",
				Help:    "Duration of aggregation operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exfuse_fetch_errors_total",
				Help: "Total number of per-exchange fetch failures",
			},
			[]string{"exchange", "operation"},
		),
		healthyExchanges: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "exfuse_healthy_exchanges",
				Help: "Number of exchanges currently passing health checks",
			},
		),
		opportunities: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exfuse_arbitrage_opportunities_total",
				Help: "Total number of arbitrage opportunities emitted",
			},
			[]string{"kind"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exfuse_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exfuse_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}
}

// RecordOperation records the duration of a completed aggregation operation.
func (r *Recorder) RecordOperation(op string, d time.Duration) {
	r.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordFetchError records a per-exchange fetch failure.
func (r *Recorder) RecordFetchError(exchange, op string) {
	r.fetchErrors.WithLabelValues(exchange, op).Inc()
}

// SetHealthyExchanges records the current healthy exchange count.
func (r *Recorder) SetHealthyExchanges(n int) {
	r.healthyExchanges.Set(float64(n))
}

// RecordOpportunity records an emitted arbitrage opportunity.
func (r *Recorder) RecordOpportunity(kind string) {
	r.opportunities.WithLabelValues(kind).Inc()
}

// RecordCacheHit records a hit on the named cache.
func (r *Recorder) RecordCacheHit(cache string) {
	r.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a miss on the named cache.
func (r *Recorder) RecordCacheMiss(cache string) {
	r.cacheMisses.WithLabelValues(cache).Inc()
}
