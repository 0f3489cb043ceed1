package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	DatabasesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yokan_databases_total",
			Help: "Total number of open databases by backend type and migration state",
		},
		[]string{"backend", "state"},
	)

	// Operation metrics
	OpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yokan_ops_total",
			Help: "Total number of RPC operations served, by op name and return code",
		},
		[]string{"op", "status"},
	)

	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yokan_op_duration_seconds",
			Help:    "Request-engine operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Buffer cache metrics
	BufferCacheLive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yokan_buffer_cache_live",
			Help: "Number of staging buffers currently checked out of the cache",
		},
		[]string{"policy"},
	)

	BufferCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yokan_buffer_cache_hits_total",
			Help: "Total number of buffer-cache gets served from a pooled buffer instead of a fresh allocation",
		},
		[]string{"policy"},
	)

	BufferCacheAllocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yokan_buffer_cache_allocations_total",
			Help: "Total number of fresh staging-buffer allocations",
		},
		[]string{"policy"},
	)

	// Streaming back-RPC metrics
	BackRPCBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yokan_backrpc_batches_total",
			Help: "Total number of back-RPC batches sent, by op and outcome",
		},
		[]string{"op", "status"},
	)

	BackRPCBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yokan_backrpc_batch_items",
			Help:    "Number of items per back-RPC batch",
			Buckets: []float64{1, 4, 16, 64, 256, 1024, 4096},
		},
		[]string{"op"},
	)

	// Migration metrics
	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yokan_migrations_total",
			Help: "Total number of database migrations attempted, by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(DatabasesTotal)
	prometheus.MustRegister(OpsTotal)
	prometheus.MustRegister(OpDuration)
	prometheus.MustRegister(BufferCacheLive)
	prometheus.MustRegister(BufferCacheHitsTotal)
	prometheus.MustRegister(BufferCacheAllocationsTotal)
	prometheus.MustRegister(BackRPCBatchesTotal)
	prometheus.MustRegister(BackRPCBatchSize)
	prometheus.MustRegister(MigrationsTotal)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
