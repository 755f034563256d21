package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart service outcomes and writer-lock contention.
type CartMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lockWait   *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart service operations by outcome code.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart service operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_lock_wait_seconds",
		Help:    "Time spent waiting for the per-cart writer lock.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"backend"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_write_conflicts_total",
		Help: "Cart writes retried after a version or uniqueness conflict.",
	}, []string{"operation"})
	reg.MustRegister(operations, duration, lockWait, conflicts)
	return &CartMetrics{
		operations: operations,
		duration:   duration,
		lockWait:   lockWait,
		conflicts:  conflicts,
	}
}

// Observe records one completed operation. outcome is "ok" or an error code.
func (c *CartMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if c == nil || c.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	c.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveLockWait records how long acquiring a cart lock took.
func (c *CartMetrics) ObserveLockWait(backend string, waited time.Duration) {
	if c == nil || c.lockWait == nil {
		return
	}
	c.lockWait.WithLabelValues(normalizeLabel(backend)).Observe(waited.Seconds())
}

// IncConflict counts a retried write.
func (c *CartMetrics) IncConflict(operation string) {
	if c == nil || c.conflicts == nil {
		return
	}
	c.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
