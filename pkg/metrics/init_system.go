package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSystemMetrics() {
	r.UptimeSeconds = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fdbridge_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	r.GoRoutines = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fdbridge_goroutines",
			Help: "Number of goroutines",
		},
	)

	r.MemoryAllocBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fdbridge_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	r.MemorySysBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "fdbridge_memory_sys_bytes",
			Help: "Total bytes obtained from the OS",
		},
	)
}
