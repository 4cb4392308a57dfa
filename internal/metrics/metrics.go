package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/bookfeed/internal/model"
)

const namespace = "bookfeed"

// DeliveryKind labels how a delivery reached the consumer.
type DeliveryKind string

const (
	DeliveryFirst        DeliveryKind = "first"
	DeliveryThrottled    DeliveryKind = "throttled"
	DeliveryFallback     DeliveryKind = "fallback"
	DeliveryUnknownVenue DeliveryKind = "unknown_venue"
)

// Metrics holds every collector the feed records to.
type Metrics struct {
	FramesTotal      *prometheus.CounterVec
	ParseErrorsTotal *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DiscardedTotal   *prometheus.CounterVec
	SessionState     *prometheus.GaugeVec
	VenueConnected   *prometheus.GaugeVec
	Subscriptions    prometheus.Gauge
	ProbeDuration    *prometheus.HistogramVec
	JournalEvents    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound WebSocket frames handed to a venue adapter.",
		}, []string{"venue"}),
		ParseErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Frames dropped because they could not be decoded.",
		}, []string{"venue"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Snapshots delivered to consumer callbacks.",
		}, []string{"venue", "kind"}),
		DiscardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_updates_total",
			Help:      "Reconciled updates that were not significant enough to deliver.",
		}, []string{"venue"}),
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Venue session state (0 idle, 1 connecting, 2 live, 3 closed).",
		}, []string{"venue"}),
		VenueConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "venue_connected",
			Help:      "1 while the venue is considered connected.",
		}, []string{"venue"}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Active subscriptions.",
		}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "REST reachability probe latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue", "outcome"}),
		JournalEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_events_total",
			Help:      "Lifecycle events by journal outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.FramesTotal,
		m.ParseErrorsTotal,
		m.DeliveriesTotal,
		m.DiscardedTotal,
		m.SessionState,
		m.VenueConnected,
		m.Subscriptions,
		m.ProbeDuration,
		m.JournalEvents,
	)
	return m
}

// NewRegistry returns a registry carrying the Go and process collectors plus
// the feed's own metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// FrameReceived counts one inbound frame.
func (m *Metrics) FrameReceived(v model.VenueID) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(string(v)).Inc()
}

// ParseError counts one dropped frame.
func (m *Metrics) ParseError(v model.VenueID) {
	if m == nil {
		return
	}
	m.ParseErrorsTotal.WithLabelValues(string(v)).Inc()
}

// Delivered counts one delivery.
func (m *Metrics) Delivered(v model.VenueID, kind DeliveryKind) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(string(v), string(kind)).Inc()
}

// Discarded counts one insignificant update.
func (m *Metrics) Discarded(v model.VenueID) {
	if m == nil {
		return
	}
	m.DiscardedTotal.WithLabelValues(string(v)).Inc()
}

// SetSessionState records the numeric session state for a venue.
func (m *Metrics) SetSessionState(v model.VenueID, state int) {
	if m == nil {
		return
	}
	m.SessionState.WithLabelValues(string(v)).Set(float64(state))
}

// SetConnected records the connected flag for a venue.
func (m *Metrics) SetConnected(v model.VenueID, connected bool) {
	if m == nil {
		return
	}
	val := 0.0
	if connected {
		val = 1
	}
	m.VenueConnected.WithLabelValues(string(v)).Set(val)
}

// SetSubscriptions records the number of active subscriptions.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.Subscriptions.Set(float64(n))
}

// ObserveProbe records one REST probe.
func (m *Metrics) ObserveProbe(v model.VenueID, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ProbeDuration.WithLabelValues(string(v), outcome).Observe(d.Seconds())
}

// JournalEvent counts n events with the given outcome ("written", "dropped", "failed").
func (m *Metrics) JournalEvent(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JournalEvents.WithLabelValues(outcome).Add(float64(n))
}
