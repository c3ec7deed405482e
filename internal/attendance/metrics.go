package attendance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the check-in flow.
type Metrics struct {
	// Processed detections by outcome
	Outcomes *prometheus.CounterVec

	// End-to-end processing latency
	ProcessLatency prometheus.Histogram

	// Detections dropped because the worker queue was full
	Dropped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_attendance_outcomes_total",
			Help: "Processed detections by attendance outcome",
		}, []string{"outcome"}),

		ProcessLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrscan_attendance_process_duration_seconds",
			Help:    "Duration of validate and register round trips",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrscan_attendance_dropped_total",
			Help: "Detections dropped because the attendance queue was full",
		}),
	}
}

func (m *Metrics) ObserveProcess(outcome Outcome, d time.Duration) {
	if m != nil {
		m.Outcomes.WithLabelValues(string(outcome)).Inc()
		m.ProcessLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}
