package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the relay's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, which keeps tests free of
// registry bookkeeping.
type Metrics struct {
	// ActiveConnections tracks live transport sessions.
	ActiveConnections prometheus.Gauge

	// EventsReceived counts inbound events.
	// Labels: event
	EventsReceived *prometheus.CounterVec

	// EventsDropped counts inbound events discarded by the silent-drop policy.
	// Labels: event, reason
	EventsDropped *prometheus.CounterVec

	// FramesDelivered counts frames enqueued on connections.
	// Labels: event
	FramesDelivered *prometheus.CounterVec

	// FramesDropped counts frames lost to full outbound buffers.
	// Labels: event
	FramesDropped *prometheus.CounterVec

	// PersistRequests counts persistence calls.
	// Labels: status (success|error|timeout|disabled)
	PersistRequests *prometheus.CounterVec

	// PersistDuration measures persistence latency in seconds.
	PersistDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "devicerelay_active_connections",
			Help: "Number of live relay connections",
		}),
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devicerelay_events_received_total",
			Help: "Inbound events by name",
		}, []string{"event"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devicerelay_events_dropped_total",
			Help: "Inbound events dropped without effect",
		}, []string{"event", "reason"}),
		FramesDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devicerelay_frames_delivered_total",
			Help: "Outbound frames enqueued on connections",
		}, []string{"event"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devicerelay_frames_dropped_total",
			Help: "Outbound frames dropped because a connection buffer was full",
		}, []string{"event"}),
		PersistRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devicerelay_persist_requests_total",
			Help: "Notification persistence calls by outcome",
		}, []string{"status"}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "devicerelay_persist_duration_seconds",
			Help:    "Latency of notification persistence calls",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) EventReceived(event string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(event).Inc()
}

func (m *Metrics) EventDropped(event, reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) Delivered(event string, delivered, dropped int) {
	if m == nil {
		return
	}
	if delivered > 0 {
		m.FramesDelivered.WithLabelValues(event).Add(float64(delivered))
	}
	if dropped > 0 {
		m.FramesDropped.WithLabelValues(event).Add(float64(dropped))
	}
}

func (m *Metrics) Persisted(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.PersistRequests.WithLabelValues(status).Inc()
	m.PersistDuration.Observe(took.Seconds())
}
