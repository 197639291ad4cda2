package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics aggregates counters and latency histograms for the strategy
// engine's public operations.
type EngineMetrics struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised metrics registry used to record
// strategy engine activity.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strategy",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strategy",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Total rejected engine operations segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "strategy",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			engineRegistry.operations,
			engineRegistry.errors,
			engineRegistry.latency,
		)
	})
	return engineRegistry
}

// Observe records the outcome and duration of an engine operation. The kind
// label carries the sentinel error name for rejected operations and is empty
// on success.
func (m *EngineMetrics) Observe(operation string, start time.Time, kind string) {
	if m == nil {
		return
	}
	outcome := "ok"
	if kind != "" {
		outcome = "error"
		m.errors.WithLabelValues(operation, kind).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
