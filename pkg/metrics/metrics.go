// Package metrics holds the server's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zentalk"

// Drop reasons
const (
	DropDecrypt  = "decrypt"
	DropProtocol = "protocol"
	DropEmpty    = "empty"
	DropShort    = "short_read"
	DropUnauth   = "unauthenticated"
)

// Metrics groups the collectors registered on one registry
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	authAttempts   *prometheus.CounterVec
	messagesStored prometheus.Counter
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open client sessions",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Number of accepted client sessions",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Number of decoded request frames",
		}, []string{"opcode"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Number of frames dropped without a reply",
		}, []string{"reason"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Number of register and login attempts",
		}, []string{"kind", "result"}),
		messagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_stored_total",
			Help:      "Number of chat messages persisted",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.sessionsActive,
		m.sessionsTotal,
		m.framesReceived,
		m.framesDropped,
		m.authAttempts,
		m.messagesStored,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) FrameReceived(opcode int16) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(strconv.Itoa(int(opcode))).Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// AuthAttempt records a register or login outcome
func (m *Metrics) AuthAttempt(kind, result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) MessageStored() {
	if m == nil {
		return
	}
	m.messagesStored.Inc()
}
