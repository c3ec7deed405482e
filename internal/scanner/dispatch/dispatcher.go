package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"qrscan/pkg/domain"
	"qrscan/pkg/platform/sentinel"
)

// Reason explains why a session closed.
type Reason string

const (
	ReasonCancelled   Reason = "cancelled"
	ReasonCameraError Reason = "camera_error"
	ReasonDetected    Reason = "detected"
)

var (
	ErrInvalidIdentifier = errors.New("identifier does not satisfy the dni invariant")
	ErrClosed            = fmt.Errorf("dispatcher closed: %w", sentinel.ErrInvalidState)
	ErrAlreadyDetected   = fmt.Errorf("identifier already delivered: %w", sentinel.ErrAlreadyUsed)
)

// Listener receives the only two events that leave a scan session.
// Implementations must not call back into the Dispatcher.
type Listener interface {
	OnDetected(identifier string)
	OnClosed(reason Reason)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Detected func(identifier string)
	Closed   func(reason Reason)
}

func (l ListenerFuncs) OnDetected(identifier string) {
	if l.Detected != nil {
		l.Detected(identifier)
	}
}

func (l ListenerFuncs) OnClosed(reason Reason) {
	if l.Closed != nil {
		l.Closed(reason)
	}
}

// Fanout delivers each event to every listener in order.
type Fanout []Listener

func (f Fanout) OnDetected(identifier string) {
	for _, l := range f {
		l.OnDetected(identifier)
	}
}

func (f Fanout) OnClosed(reason Reason) {
	for _, l := range f {
		l.OnClosed(reason)
	}
}

// Dispatcher enforces delivery guarantees in front of a Listener: OnClosed
// fires exactly once, OnDetected only with valid identifiers, never after
// close, and at most once in single-shot mode.
type Dispatcher struct {
	mu         sync.Mutex
	listener   Listener
	singleShot bool
	logger     *slog.Logger

	delivered int
	closed    bool
	reason    Reason
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithContinuous allows one OnDetected per distinct scan instead of one per session.
func WithContinuous() Option {
	return func(d *Dispatcher) {
		d.singleShot = false
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func New(listener Listener, opts ...Option) (*Dispatcher, error) {
	if listener == nil {
		return nil, errors.New("listener is required")
	}
	d := &Dispatcher{
		listener:   listener,
		singleShot: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detected hands an identifier to the listener.
func (d *Dispatcher) Detected(dni domain.DNI) error {
	if !dni.IsValid() {
		return ErrInvalidIdentifier
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.singleShot && d.delivered > 0 {
		return ErrAlreadyDetected
	}
	d.delivered++
	d.listener.OnDetected(dni.String())
	return nil
}

// Close notifies the listener once. Later calls are ignored and return false.
func (d *Dispatcher) Close(reason Reason) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Debug("dispatcher already closed", "reason", d.reason, "ignored", reason)
		return false
	}
	d.closed = true
	d.reason = reason
	d.listener.OnClosed(reason)
	return true
}

// Closed reports whether Close has run and with which reason.
func (d *Dispatcher) Closed() (Reason, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason, d.closed
}

// Delivered is the number of identifiers handed to the listener.
func (d *Dispatcher) Delivered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delivered
}
