package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics records product query and catalog write outcomes.
type CatalogMetrics struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	results  prometheus.Histogram
}

func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_operations_total",
		Help: "Catalog operations by outcome code.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_operation_duration_seconds",
		Help:    "Duration of catalog operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	results := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_query_total_matches",
		Help:    "Total matching products per catalog query.",
		Buckets: []float64{0, 1, 5, 12, 50, 100, 500, 1000},
	})
	reg.MustRegister(queries, duration, results)
	return &CatalogMetrics{queries: queries, duration: duration, results: results}
}

func (c *CatalogMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if c == nil || c.queries == nil {
		return
	}
	op := normalizeLabel(operation)
	c.queries.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *CatalogMetrics) ObserveMatches(total int64) {
	if c == nil || c.results == nil {
		return
	}
	c.results.Observe(float64(total))
}
