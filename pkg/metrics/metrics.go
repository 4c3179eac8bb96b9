package metrics

import (
	"runtime"
	"time"
)

// RecordHandleOpen records a native handle being adopted by a wrapper
func (r *Registry) RecordHandleOpen(kind string) {
	r.HandleOpensTotal.WithLabelValues(kind).Inc()
	r.HandlesOpen.WithLabelValues(kind).Inc()
}

// RecordHandleClose records a native handle release with its trigger
func (r *Registry) RecordHandleClose(kind, trigger string) {
	r.HandleClosesTotal.WithLabelValues(kind, trigger).Inc()
	r.HandlesOpen.WithLabelValues(kind).Dec()
}

// RecordWrapConflict records a rejected double-wrap attempt
func (r *Registry) RecordWrapConflict(kind string) {
	r.WrapConflictsTotal.WithLabelValues(kind).Inc()
}

// RecordOperation records a settled operation with its terminal outcome
func (r *Registry) RecordOperation(operation, outcome string, duration time.Duration) {
	r.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCancellation records a cancellation request
func (r *Registry) RecordCancellation() {
	r.CancellationsTotal.Inc()
}

// RecordLateCompletion records a result that arrived after settlement
func (r *Registry) RecordLateCompletion() {
	r.LateCompletionsTotal.Inc()
}

// SetOperationsInFlight updates the pending-operation gauge
func (r *Registry) SetOperationsInFlight(n int) {
	r.OperationsInFlight.Set(float64(n))
}

// SetCompletionQueueDepth updates the handoff queue gauge
func (r *Registry) SetCompletionQueueDepth(n int) {
	r.CompletionQueueDepth.Set(float64(n))
}

// RecordCompletionQueueOverflow records a handoff that missed the queue
func (r *Registry) RecordCompletionQueueOverflow() {
	r.CompletionQueueOverflowsTotal.Inc()
}

// RecordDispatch records one dispatcher resolution
func (r *Registry) RecordDispatch(duration time.Duration) {
	r.DispatchDuration.Observe(duration.Seconds())
}

// UpdateSystemMetrics refreshes the process-level gauges
func (r *Registry) UpdateSystemMetrics(start time.Time) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.UptimeSeconds.Set(time.Since(start).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}
