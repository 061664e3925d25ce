package sensorgate

// MetricsRecorder receives Engine counters. The metrics package provides a
// Prometheus implementation.
type MetricsRecorder interface {
	AuthEvent(event string, success bool)
	AuditDropped()
}

type noopMetrics struct{}

func (noopMetrics) AuthEvent(string, bool) {}
func (noopMetrics) AuditDropped()          {}
