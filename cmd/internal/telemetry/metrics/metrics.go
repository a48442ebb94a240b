// Package metrics exposes Prometheus metrics for session login and the
// WebSocket gateway.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webapp"

// Metrics holds the application collectors and the registry serving them.
type Metrics struct {
	registry *prometheus.Registry

	Logins         *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	WSConnections  prometheus.Gauge
	WSMessages     *prometheus.CounterVec
}

// New creates collectors on a private registry (plus Go and process collectors).
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Session login attempts by result.",
		}, []string{"result"}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "decode_failures_total",
			Help:      "Inbound messages that failed to decode, by kind.",
		}, []string{"kind"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "WebSocket frames by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Logins,
		m.DecodeFailures,
		m.WSConnections,
		m.WSMessages,
	)
	return m
}

// ObserveLogin counts one login outcome.
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

// ObserveDecodeFailure counts one undecodable inbound message.
func (m *Metrics) ObserveDecodeFailure(kind string) {
	if m == nil {
		return
	}
	m.DecodeFailures.WithLabelValues(kind).Inc()
}

// WSConnected records an accepted WebSocket connection.
func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// WSDisconnected records a closed WebSocket connection.
func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// WSMessage counts one frame in direction "in" or "out".
func (m *Metrics) WSMessage(direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
