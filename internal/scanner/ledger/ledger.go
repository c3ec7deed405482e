// Package ledger remembers which identifiers were recently handed to the
// attendance flow so the same student is not registered twice across
// sessions or server instances.
package ledger

import (
	"context"
	"sync"
	"time"
)

// Ledger claims keys for a bounded time.
type Ledger interface {
	// Claim returns true when key was not already claimed within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so a later scan can retry.
	Release(ctx context.Context, key string) error
}

// Memory is a process-local Ledger.
type Memory struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithClock overrides the time source; tests only.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{expires: make(map[string]time.Time), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, ok := m.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	m.sweep(now)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expires, key)
	return nil
}

// sweep drops expired claims; caller holds mu.
func (m *Memory) sweep(now time.Time) {
	for k, until := range m.expires {
		if !now.Before(until) {
			delete(m.expires, k)
		}
	}
}
