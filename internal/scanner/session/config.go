package session

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the session knobs. Zero values are not defaults; start from
// DefaultConfig.
type Config struct {
	// TickInterval is the capture cadence.
	TickInterval time.Duration
	// RemoteEscalationThreshold is the number of consecutive local misses
	// before remote decoding becomes eligible.
	RemoteEscalationThreshold int
	// RemoteTickStride spaces remote attempts once eligible: every Nth miss.
	RemoteTickStride int
	// Cooldown pauses capture after a detection.
	Cooldown time.Duration
	// DuplicateWindow suppresses the same identifier seen again this soon.
	DuplicateWindow time.Duration
	// SingleShot terminates the session once the first cooldown expires.
	SingleShot bool
	// RemoteTimeout bounds one remote call, cascade included.
	RemoteTimeout time.Duration
	// MaxRemoteFailures consecutive unreachable results disable remote
	// decoding until the session is resumed.
	MaxRemoteFailures int
	// AdvisoryTTL is how long a recoverable warning stays visible.
	AdvisoryTTL time.Duration
	// HistorySize caps the attempt ring kept for snapshots.
	HistorySize int
}

func DefaultConfig() Config {
	return Config{
		TickInterval:              800 * time.Millisecond,
		RemoteEscalationThreshold: 5,
		RemoteTickStride:          3,
		Cooldown:                  1500 * time.Millisecond,
		DuplicateWindow:           3 * time.Second,
		SingleShot:                true,
		RemoteTimeout:             5 * time.Second,
		MaxRemoteFailures:         3,
		AdvisoryTTL:               3 * time.Second,
		HistorySize:               32,
	}
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if c.RemoteEscalationThreshold < 0 {
		errs = append(errs, errors.New("remote escalation threshold must not be negative"))
	}
	if c.RemoteTickStride < 1 {
		errs = append(errs, errors.New("remote tick stride must be at least 1"))
	}
	if c.Cooldown < 0 {
		errs = append(errs, errors.New("cooldown must not be negative"))
	}
	if c.DuplicateWindow < 0 {
		errs = append(errs, errors.New("duplicate window must not be negative"))
	}
	if c.RemoteTimeout <= 0 {
		errs = append(errs, errors.New("remote timeout must be positive"))
	}
	if c.MaxRemoteFailures < 1 {
		errs = append(errs, errors.New("max remote failures must be at least 1"))
	}
	if c.AdvisoryTTL < 0 {
		errs = append(errs, errors.New("advisory ttl must not be negative"))
	}
	if c.HistorySize < 1 {
		errs = append(errs, errors.New("history size must be at least 1"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	return nil
}
