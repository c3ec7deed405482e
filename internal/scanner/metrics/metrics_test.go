package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt("local", "found", time.Millisecond)
		m.ObserveRemoteCall("quickchart", "found", time.Millisecond)
		m.IncrementBreakerTransition("quickchart", "open")
		m.IncrementDetection("plain_digits")
		m.IncrementDuplicate()
		m.IncrementFrameUnavailable()
		m.SessionStarted()
		m.SessionClosed("detected")
	})
}

func TestMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)

	m.ObserveAttempt("local", "not_found", 3*time.Millisecond)
	m.ObserveAttempt("local", "not_found", 3*time.Millisecond)
	m.IncrementDetection("json_attendance")
	m.SessionStarted()
	m.SessionStarted()
	m.SessionClosed("cancelled")

	assert.InDelta(t, 2, testutil.ToFloat64(m.DecodeAttempts.WithLabelValues("local", "not_found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Detections.WithLabelValues("json_attendance")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveSessions), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionsClosed.WithLabelValues("cancelled")), 0)

	count, err := testutil.GatherAndCount(reg, "qrscan_decode_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
