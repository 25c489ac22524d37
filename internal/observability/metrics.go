// Package observability exposes prometheus metrics for the conference server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicestate"

// Metrics owns a dedicated registry so tests and multiple servers do not clash
// on the default one.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	clients    prometheus.Gauge
	feeds      prometheus.Gauge
	messages   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_operations_total",
			Help:      "Publish, replace, unpublish, subscribe and unsubscribe calls by outcome.",
		}, []string{"op", "outcome"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients",
			Help:      "Conferences currently held by the server.",
		}),
		feeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_feeds",
			Help:      "Open websocket state feeds.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages accepted or rejected by the rate limiter.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.operations, m.clients, m.feeds, m.messages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation counts one stream operation. A nil err is a success.
func (m *Metrics) ObserveOperation(op string, err error) {
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) ClientAdded()   { m.clients.Inc() }
func (m *Metrics) ClientRemoved() { m.clients.Dec() }
func (m *Metrics) FeedOpened()    { m.feeds.Inc() }
func (m *Metrics) FeedClosed()    { m.feeds.Dec() }

// MessageSent counts a chat message; limited marks one dropped by the rate limiter.
func (m *Metrics) MessageSent(limited bool) {
	o := "accepted"
	if limited {
		o = "limited"
	}
	m.messages.WithLabelValues(o).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
