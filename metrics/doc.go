// Package metrics exports the service counters through Prometheus.
//
// [Collector] satisfies the recorder interfaces of the auth engine and the
// telemetry router, so a single registry covers both.
package metrics
