package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initOperationMetrics() {
	r.OperationsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fdbridge_operations_in_flight",
			Help: "Number of pending asynchronous operations",
		},
	)

	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdbridge_operations_total",
			Help: "Total settled operations by terminal outcome",
		},
		[]string{"operation", "outcome"}, // resolved, errored, cancelled
	)

	r.OperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fdbridge_operation_duration_seconds",
			Help:    "Time from issuing an operation to its settlement",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation"},
	)

	r.CancellationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fdbridge_cancellations_total",
			Help: "Total cancellation requests forwarded to the native layer",
		},
	)

	r.LateCompletionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fdbridge_late_completions_total",
			Help: "Native results that arrived after their operation had settled",
		},
	)
}
