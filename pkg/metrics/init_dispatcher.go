package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initDispatcherMetrics() {
	r.CompletionQueueDepth = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fdbridge_completion_queue_depth",
			Help: "Completions waiting between the network thread and the dispatcher",
		},
	)

	r.CompletionQueueOverflowsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fdbridge_completion_queue_overflows_total",
			Help: "Completions that missed the queue and handed off via a goroutine",
		},
	)

	r.DispatchDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fdbridge_dispatch_duration_seconds",
			Help:    "Time the dispatcher spends resolving one completion",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
	)
}
