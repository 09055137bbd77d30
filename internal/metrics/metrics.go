// Package metrics exposes the Prometheus instrumentation shared by both
// services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors. A process constructs one against the
// default registerer; tests pass a fresh registry so repeated
// construction never collides.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	connectionsFailed prometheus.Counter

	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	framesDropped  prometheus.Counter

	eventsConsumed  *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	publishFailures prometheus.Counter

	messagesStored prometheus.Counter

	httpRequestDuration *prometheus.HistogramVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_ws_connections_active",
			Help: "Number of currently active WebSocket sessions",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_ws_connections_total",
			Help: "Total number of accepted WebSocket sessions",
		}),
		connectionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_ws_connections_failed_total",
			Help: "Total number of rejected or failed WebSocket upgrades",
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_ws_frames_sent_total",
			Help: "Total number of frames written to clients",
		}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_ws_frames_received_total",
			Help: "Total number of frames read from clients",
		}),
		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_ws_frames_dropped_total",
			Help: "Total number of frames dropped on full outbound queues",
		}),
		eventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_bus_events_consumed_total",
			Help: "Total number of bus events consumed, by event type",
		}, []string{"event_type"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_bus_events_published_total",
			Help: "Total number of bus events published, by event type",
		}, []string{"event_type"}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_bus_publish_failures_total",
			Help: "Total number of failed event publishes",
		}),
		messagesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_stored_total",
			Help: "Total number of messages written to the message store",
		}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() { m.connectionsActive.Dec() }
func (m *Metrics) ConnectionFailed() { m.connectionsFailed.Inc() }

func (m *Metrics) FrameSent()     { m.framesSent.Inc() }
func (m *Metrics) FrameReceived() { m.framesReceived.Inc() }

// FramesDropped records frames lost to slow clients during a broadcast.
func (m *Metrics) FramesDropped(n int) { m.framesDropped.Add(float64(n)) }

// FramesSent records frames delivered during a broadcast.
func (m *Metrics) FramesSent(n int) { m.framesSent.Add(float64(n)) }

func (m *Metrics) EventConsumed(eventType string)  { m.eventsConsumed.WithLabelValues(eventType).Inc() }
func (m *Metrics) EventPublished(eventType string) { m.eventsPublished.WithLabelValues(eventType).Inc() }
func (m *Metrics) PublishFailed()                  { m.publishFailures.Inc() }

func (m *Metrics) MessageStored() { m.messagesStored.Inc() }

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(route, status string, seconds float64) {
	m.httpRequestDuration.WithLabelValues(route, status).Observe(seconds)
}

// Handler serves the scrape endpoint for the default registry.
func Handler() http.Handler { return promhttp.Handler() }
