package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initHandleMetrics() {
	r.HandlesOpen = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fdbridge_handles_open",
			Help: "Number of live native handles owned by wrappers",
		},
		[]string{"kind"}, // cluster, database
	)

	r.HandleOpensTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdbridge_handle_opens_total",
			Help: "Total native handles adopted by wrappers",
		},
		[]string{"kind"},
	)

	r.HandleClosesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdbridge_handle_closes_total",
			Help: "Total native handle releases by trigger",
		},
		[]string{"kind", "trigger"}, // explicit, finalizer, shutdown
	)

	r.WrapConflictsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fdbridge_wrap_conflicts_total",
			Help: "Rejected attempts to wrap an already-owned native pointer",
		},
		[]string{"kind"},
	)
}
