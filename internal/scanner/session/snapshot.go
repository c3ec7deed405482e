package session

import (
	"time"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/dispatch"
	"qrscan/pkg/platform/privacy"
)

// Snapshot is a point-in-time copy of a session for status endpoints and
// tests. The last identifier is reported masked.
type Snapshot struct {
	ID             string           `json:"id"`
	Source         string           `json:"source"`
	Phase          Phase            `json:"phase"`
	SingleShot     bool             `json:"single_shot"`
	Attempts       int              `json:"attempts"`
	Misses         int              `json:"misses"`
	Detections     int              `json:"detections"`
	LastDetected   string           `json:"last_detected,omitempty"`
	RemoteInFlight bool             `json:"remote_in_flight"`
	RemoteFailures int              `json:"remote_failures"`
	RemoteDisabled bool             `json:"remote_disabled"`
	LastDetectedAt *time.Time       `json:"last_detected_at,omitempty"`
	Advisory       string           `json:"advisory,omitempty"`
	Error          string           `json:"error,omitempty"`
	CloseReason    dispatch.Reason  `json:"close_reason,omitempty"`
	History        []decode.Attempt `json:"history"`
}

func (s *Session) Snapshot() Snapshot {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state

	snap := Snapshot{
		ID:             s.id.String(),
		Source:         s.sourceName,
		Phase:          st.phase,
		SingleShot:     s.cfg.SingleShot,
		Attempts:       st.attempts,
		Misses:         st.misses,
		Detections:     st.detections,
		RemoteInFlight: st.inFlight,
		RemoteFailures: st.remoteFailures,
		RemoteDisabled: st.remoteDefeated,
		CloseReason:    st.closeReason,
		History:        append([]decode.Attempt(nil), st.history...),
	}
	if !st.lastAt.IsZero() {
		snap.LastDetected = privacy.MaskDNI(st.lastDNI.String())
		at := st.lastAt
		snap.LastDetectedAt = &at
	}
	if st.advisory != "" && now.Before(st.advisoryUntil) {
		snap.Advisory = st.advisory
	}
	if st.err != nil {
		snap.Error = st.err.Error()
	}
	return snap
}

// Err returns the fatal error that terminated the session, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.err
}

// Phase is a shortcut for Snapshot().Phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.phase
}
