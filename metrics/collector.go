package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all service metrics.
type Collector struct {
	AuthEventsTotal         *prometheus.CounterVec
	AuditDroppedTotal       prometheus.Counter
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	TelemetryMessagesTotal  *prometheus.CounterVec
	TelemetryAlertsTotal    *prometheus.CounterVec
	TelemetryViewersCurrent prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewCollector creates and registers every metric on registry.
func NewCollector(registry *prometheus.Registry) *Collector {
	c := &Collector{
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorgate_auth_events_total",
				Help: "Authentication events by outcome",
			},
			[]string{"event", "result"},
		),
		AuditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sensorgate_audit_dropped_total",
				Help: "Audit events dropped because the dispatcher buffer was full",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sensorgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TelemetryMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorgate_telemetry_messages_total",
				Help: "Telemetry messages by topic and processing result",
			},
			[]string{"topic", "result"},
		),
		TelemetryAlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorgate_telemetry_alerts_total",
				Help: "Telemetry threshold alerts by topic and kind",
			},
			[]string{"topic", "kind"},
		),
		TelemetryViewersCurrent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sensorgate_telemetry_viewers",
				Help: "Connected websocket viewers",
			},
		),
		gatherer: registry,
	}

	registry.MustRegister(
		c.AuthEventsTotal,
		c.AuditDroppedTotal,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		c.TelemetryMessagesTotal,
		c.TelemetryAlertsTotal,
		c.TelemetryViewersCurrent,
	)
	return c
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (c *Collector) AuthEvent(event string, success bool) {
	c.AuthEventsTotal.WithLabelValues(event, result(success)).Inc()
}

func (c *Collector) AuditDropped() {
	c.AuditDroppedTotal.Inc()
}

func (c *Collector) TelemetryMessage(topic, result string) {
	c.TelemetryMessagesTotal.WithLabelValues(topic, result).Inc()
}

func (c *Collector) TelemetryAlert(topic, kind string) {
	c.TelemetryAlertsTotal.WithLabelValues(topic, kind).Inc()
}

// SetViewers records the current websocket viewer count.
func (c *Collector) SetViewers(n int) {
	c.TelemetryViewersCurrent.Set(float64(n))
}

// HTTPRequest records one finished request.
func (c *Collector) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware counts requests. route names the label value for a request; nil
// uses the raw path.
func (c *Collector) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			c.HTTPRequest(r.Method, route(r), rw.statusCode, time.Since(start))
		})
	}
}
