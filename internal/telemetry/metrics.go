// Package telemetry exposes prometheus metrics for the client.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors used across the client. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	messagesReceived  *prometheus.CounterVec
	messagesMalformed prometheus.Counter
	handlerPanics     prometheus.Counter
	reconnects        prometheus.Counter
	channelState      prometheus.Gauge
	layoutDuration    *prometheus.HistogramVec
	fetchFailures     *prometheus.CounterVec
	refetches         prometheus.Counter
}

// NewMetrics registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgraph_stream_messages_total",
			Help: "Inbound stream events by type",
		}, []string{"type"}),
		messagesMalformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimgraph_stream_malformed_total",
			Help: "Inbound messages dropped because they could not be decoded",
		}),
		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimgraph_stream_handler_panics_total",
			Help: "Subscriber handlers that panicked",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimgraph_stream_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after a close or error",
		}),
		channelState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "claimgraph_stream_state",
			Help: "Channel state (0 disconnected, 1 connecting, 2 open, 3 reconnect scheduled, 4 given up)",
		}),
		layoutDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimgraph_layout_duration_seconds",
			Help:    "Time spent laying out the forest",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"strategy"}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgraph_fetch_failures_total",
			Help: "Repository API failures by operation",
		}, []string{"op"}),
		refetches: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimgraph_tree_refetches_total",
			Help: "Forest refetches triggered by events",
		}),
	}
}

func (m *Metrics) MessageReceived(eventType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(eventType).Inc()
}

func (m *Metrics) MessageMalformed() {
	if m == nil {
		return
	}
	m.messagesMalformed.Inc()
}

func (m *Metrics) HandlerPanicked() {
	if m == nil {
		return
	}
	m.handlerPanics.Inc()
}

func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// ChannelState records the numeric channel state
func (m *Metrics) ChannelState(state int) {
	if m == nil {
		return
	}
	m.channelState.Set(float64(state))
}

// ObserveLayout records how long a layout pass took
func (m *Metrics) ObserveLayout(strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.layoutDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (m *Metrics) FetchFailed(op string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) Refetched() {
	if m == nil {
		return
	}
	m.refetches.Inc()
}
