package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of one process.
type Metrics struct {
	registry *prometheus.Registry

	// Transport metrics
	MessagesPublished *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	MalformedPayloads *prometheus.CounterVec
	PublishFailures   *prometheus.CounterVec

	// Driver metrics
	Ready *prometheus.GaugeVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Streaming metrics
	WSConnections    prometheus.Gauge
	BusSubscriptions prometheus.Gauge

	// Resilience metrics
	BreakerState *prometheus.GaugeVec

	startTime time.Time
}

// NewMetrics creates a collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		MessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robotdriver_messages_published_total",
				Help: "Total number of messages handed to the transport",
			},
			[]string{"topic"},
		),
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robotdriver_messages_received_total",
				Help: "Total number of messages delivered to a handler",
			},
			[]string{"topic"},
		),
		MalformedPayloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robotdriver_malformed_payloads_total",
				Help: "Total number of payloads that failed to decode",
			},
			[]string{"topic"},
		),
		PublishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robotdriver_publish_failures_total",
				Help: "Total number of publish calls rejected by the transport",
			},
			[]string{"topic"},
		),

		Ready: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "robotdriver_ready",
				Help: "1 when the component passes its readiness gate",
			},
			[]string{"role", "prefix"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robotdriver_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "robotdriver_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "robotdriver_ws_connections",
				Help: "Number of active websocket state streams",
			},
		),
		BusSubscriptions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "robotdriver_bus_subscriptions",
				Help: "Number of remote subscriptions served by the gRPC bus",
			},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "robotdriver_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "robotdriver_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordPublished counts a message handed to the transport.
func (m *Metrics) RecordPublished(topic string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(topic).Inc()
}

// RecordReceived counts a message delivered to a handler.
func (m *Metrics) RecordReceived(topic string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(topic).Inc()
}

// RecordMalformed counts a payload rejected at the decode boundary.
func (m *Metrics) RecordMalformed(topic string) {
	if m == nil {
		return
	}
	m.MalformedPayloads.WithLabelValues(topic).Inc()
}

// RecordPublishFailure counts a publish the transport refused.
func (m *Metrics) RecordPublishFailure(topic string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(topic).Inc()
}

// SetReady records the readiness of a component.
func (m *Metrics) SetReady(role, prefix string, ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	m.Ready.WithLabelValues(role, prefix).Set(v)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncWSConnections increments active websocket streams.
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements active websocket streams.
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// AddBusSubscriptions adjusts the remote subscription gauge by delta.
func (m *Metrics) AddBusSubscriptions(delta int) {
	if m == nil {
		return
	}
	m.BusSubscriptions.Add(float64(delta))
}

// SetBreakerState records a breaker state as a number.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
