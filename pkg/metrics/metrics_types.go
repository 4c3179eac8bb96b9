package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Handle metrics
	HandlesOpen        *prometheus.GaugeVec
	HandleOpensTotal   *prometheus.CounterVec
	HandleClosesTotal  *prometheus.CounterVec
	WrapConflictsTotal *prometheus.CounterVec

	// Operation metrics
	OperationsInFlight   prometheus.Gauge
	OperationsTotal      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	CancellationsTotal   prometheus.Counter
	LateCompletionsTotal prometheus.Counter

	// Dispatcher metrics
	CompletionQueueDepth          prometheus.Gauge
	CompletionQueueOverflowsTotal prometheus.Counter
	DispatchDuration              prometheus.Histogram

	// System metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initHandleMetrics()
	r.initOperationMetrics()
	r.initDispatcherMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
