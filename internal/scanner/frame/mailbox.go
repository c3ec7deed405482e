package frame

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Mailbox is a push-fed Source holding only the most recent frame. A capture
// goroutine calls Publish; the scan loop calls Acquire. New frames overwrite
// unconsumed ones, so the loop always decodes the freshest image.
type Mailbox struct {
	name string

	mu     sync.Mutex
	latest *Frame
	failed error
	closed bool

	seq   atomic.Uint64
	drops atomic.Uint64
	now   func() time.Time
}

// NewMailbox creates an empty mailbox named after the camera feeding it.
func NewMailbox(name string) *Mailbox {
	return &Mailbox{name: name, now: time.Now}
}

// Publish stores img as the latest frame. Non-blocking; never fails.
func (m *Mailbox) Publish(img image.Image) {
	f := &Frame{
		Seq:        m.seq.Add(1),
		CapturedAt: m.now(),
		Image:      img,
		Source:     m.name,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.latest != nil {
		m.drops.Add(1)
	}
	m.latest = f
}

// Fail records a fatal camera failure; the next Acquire returns it.
func (m *Mailbox) Fail(kind CameraErrorKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = newCameraError(kind, m.name, err)
}

// Acquire takes the latest unconsumed frame.
func (m *Mailbox) Acquire(_ context.Context) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, newCameraError(CameraClosed, m.name, nil)
	}
	if m.failed != nil {
		return nil, m.failed
	}
	if m.latest == nil {
		return nil, ErrUnavailable
	}
	f := m.latest
	m.latest = nil
	return f, nil
}

// Drops reports how many frames were overwritten before being consumed.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}

func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.latest = nil
	return nil
}
