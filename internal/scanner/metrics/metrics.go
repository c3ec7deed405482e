package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scan sessions and decode engines.
type Metrics struct {
	// Decode attempts by strategy ("local", "remote") and outcome
	DecodeAttempts *prometheus.CounterVec

	// Decode latency by strategy
	DecodeLatency *prometheus.HistogramVec

	// Remote provider call latency by provider and outcome
	RemoteLatency *prometheus.HistogramVec

	// Circuit breaker transitions by provider and new state
	BreakerTransitions *prometheus.CounterVec

	// Identifiers delivered to listeners by extraction rule
	Detections *prometheus.CounterVec

	// Scans suppressed as duplicates
	DuplicatesSuppressed prometheus.Counter

	// Ticks that found no frame ready
	FramesUnavailable prometheus.Counter

	// Sessions currently running
	ActiveSessions prometheus.Gauge

	// Session terminations by reason
	SessionsClosed *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the scanner metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecodeAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_decode_attempts_total",
			Help: "Total decode attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		DecodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qrscan_decode_duration_seconds",
			Help:    "Duration of decode attempts by strategy",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"strategy"}),

		RemoteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qrscan_remote_provider_duration_seconds",
			Help:    "Duration of remote decode provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}, []string{"provider", "outcome"}),

		BreakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_remote_breaker_transitions_total",
			Help: "Circuit breaker state changes per remote provider",
		}, []string{"provider", "state"}),

		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_detections_total",
			Help: "Identifiers delivered to listeners by extraction rule",
		}, []string{"rule"}),

		DuplicatesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrscan_duplicates_suppressed_total",
			Help: "Scans dropped because the same identifier was seen inside the duplicate window",
		}),

		FramesUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrscan_frames_unavailable_total",
			Help: "Ticks skipped because no frame was ready",
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qrscan_active_sessions",
			Help: "Scan sessions currently running",
		}),

		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_sessions_closed_total",
			Help: "Scan session terminations by reason",
		}, []string{"reason"}),
	}
}

// ObserveAttempt records one decode attempt.
func (m *Metrics) ObserveAttempt(strategy, outcome string, d time.Duration) {
	if m != nil {
		m.DecodeAttempts.WithLabelValues(strategy, outcome).Inc()
		m.DecodeLatency.WithLabelValues(strategy).Observe(d.Seconds())
	}
}

// ObserveRemoteCall records a single provider call.
func (m *Metrics) ObserveRemoteCall(provider, outcome string, d time.Duration) {
	if m != nil {
		m.RemoteLatency.WithLabelValues(provider, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementBreakerTransition(provider, state string) {
	if m != nil {
		m.BreakerTransitions.WithLabelValues(provider, state).Inc()
	}
}

func (m *Metrics) IncrementDetection(rule string) {
	if m != nil {
		m.Detections.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.DuplicatesSuppressed.Inc()
	}
}

func (m *Metrics) IncrementFrameUnavailable() {
	if m != nil {
		m.FramesUnavailable.Inc()
	}
}

// SessionStarted bumps the active gauge.
func (m *Metrics) SessionStarted() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

// SessionClosed drops the active gauge and counts the reason.
func (m *Metrics) SessionClosed(reason string) {
	if m != nil {
		m.ActiveSessions.Dec()
		m.SessionsClosed.WithLabelValues(reason).Inc()
	}
}
