// Package events publishes attendance outcomes for downstream consumers
// (dashboards, roll-call exports). Events never carry the raw identifier.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies attendance events.
type Type string

const (
	TypeCheckIn  Type = "attendance.checked_in"
	TypeRejected Type = "attendance.rejected"
	TypeSkipped  Type = "attendance.skipped"
)

// Event is one processed detection.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Type        Type      `json:"type"`
	SubjectHash string    `json:"subject_hash"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// New stamps an event with an id and time.
func New(t Type, subjectHash, outcome, reason string) Event {
	return Event{
		ID:          uuid.New(),
		Type:        t,
		SubjectHash: subjectHash,
		Outcome:     outcome,
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher ships events somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Memory keeps events in process; used when no broker is configured and in tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
