package metrics

import (
	"time"
)

// Outcome labels for facade operations.
const (
	// OutcomeOK marks an operation that did what was asked.
	OutcomeOK = "ok"
	// OutcomeRecovered marks an operation absorbed as a boolean false:
	// the backend refused for a recoverable reason (already exists, not
	// found) and the caller got (false, nil).
	OutcomeRecovered = "recovered"
	// OutcomeError marks a failed operation.
	OutcomeError = "error"
	// OutcomeEmitError marks an operation whose own result stood but whose
	// telemetry event could not be delivered.
	OutcomeEmitError = "emit_error"
)

// DefaultOpDurationBuckets covers sub-second metadata calls through
// multi-minute bulk copies.
var DefaultOpDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// FacadeMetrics is the instrument set shared by the storage, database and
// logging facades.
type FacadeMetrics struct {
	// OpsTotal counts operations by component, op and outcome.
	OpsTotal CounterVec
	// OpDuration observes operation latency by component and op.
	OpDuration HistogramVec
	// EventsEmitted counts delivered events by engine and severity.
	EventsEmitted CounterVec
	// EmitFailures counts undeliverable events by engine and error code.
	EmitFailures CounterVec
	// BackendUp reports connectivity per backend (1 up, 0 down).
	BackendUp GaugeVec
	// BytesMoved counts payload bytes by component and direction.
	BytesMoved CounterVec
}

// NewFacadeMetrics registers the facade instrument set on the collector.
func NewFacadeMetrics(c Collector) *FacadeMetrics {
	return &FacadeMetrics{
		OpsTotal:      c.RegisterCounter("facade_ops_total", "Facade operations", "component", "op", "outcome"),
		OpDuration:    c.RegisterHistogram("facade_op_duration_seconds", "Facade operation latency", DefaultOpDurationBuckets, "component", "op"),
		EventsEmitted: c.RegisterCounter("events_emitted_total", "Events delivered to a sink", "engine", "severity"),
		EmitFailures:  c.RegisterCounter("event_emit_failures_total", "Events a sink refused", "engine", "code"),
		BackendUp:     c.RegisterGauge("backend_up", "Backend connectivity (1 up, 0 down)", "backend"),
		BytesMoved:    c.RegisterCounter("bytes_moved_total", "Payload bytes moved", "component", "direction"),
	}
}

// NewNop returns an instrument set that records nothing. Facades accept it
// so metrics stay optional.
func NewNop() *FacadeMetrics {
	return NewFacadeMetrics(NopCollector{})
}

// RecordOp counts one operation and observes its latency. Safe on nil.
func RecordOp(m *FacadeMetrics, component, op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OpsTotal.WithLabelValues(component, op, outcome).Inc()
	m.OpDuration.WithLabelValues(component, op).Observe(elapsed.Seconds())
}

// RecordEmit counts one delivered event. Safe on nil.
func RecordEmit(m *FacadeMetrics, engine, severity string) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(engine, severity).Inc()
}

// RecordEmitFailure counts one refused event. Safe on nil.
func RecordEmitFailure(m *FacadeMetrics, engine, code string) {
	if m == nil {
		return
	}
	m.EmitFailures.WithLabelValues(engine, code).Inc()
}

// SetBackendUp flips a backend's connectivity gauge. Safe on nil.
func SetBackendUp(m *FacadeMetrics, backend string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.BackendUp.WithLabelValues(backend).Set(v)
}

// RecordBytes counts payload bytes moved. Safe on nil.
func RecordBytes(m *FacadeMetrics, component, direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesMoved.WithLabelValues(component, direction).Add(float64(n))
}
