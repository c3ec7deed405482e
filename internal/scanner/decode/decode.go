// Package decode holds the outcome vocabulary shared by the local and remote
// decode strategies and the scan session that arbitrates between them.
package decode

import "time"

// Strategy names the decoder that produced an attempt.
type Strategy string

const (
	StrategyLocal  Strategy = "local"
	StrategyRemote Strategy = "remote"
)

// Outcome is the normalized result of a single decode attempt.
type Outcome string

const (
	// OutcomeFound means a QR payload was read.
	OutcomeFound Outcome = "found"
	// OutcomeNotFound is the expected common case: no QR visible, or the
	// decoder answered with something unusable.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeUnreachable applies to remote decoding only: timeout, transport
	// failure or non-2xx answer. Recoverable.
	OutcomeUnreachable Outcome = "unreachable"
	// OutcomePending marks a remote attempt that has not completed yet.
	OutcomePending Outcome = "pending"
)

// Result is what a decoder hands back to the session.
type Result struct {
	Outcome  Outcome
	Payload  string
	Provider string
	// Reason is a short, log-safe explanation for non-found outcomes.
	Reason string
}

func Found(payload, provider string) Result {
	return Result{Outcome: OutcomeFound, Payload: payload, Provider: provider}
}

func NotFound(provider, reason string) Result {
	return Result{Outcome: OutcomeNotFound, Provider: provider, Reason: reason}
}

func Unreachable(provider, reason string) Result {
	return Result{Outcome: OutcomeUnreachable, Provider: provider, Reason: reason}
}

func (r Result) IsFound() bool {
	return r.Outcome == OutcomeFound
}

// Attempt records one scheduled decode try. Attempts live in the owning
// session's bounded history and are never persisted.
type Attempt struct {
	Seq       uint64        `json:"seq"`
	FrameSeq  uint64        `json:"frame_seq"`
	Strategy  Strategy      `json:"strategy"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Outcome   Outcome       `json:"outcome"`
	Provider  string        `json:"provider,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}
