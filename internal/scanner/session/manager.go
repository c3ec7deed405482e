package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"qrscan/internal/scanner/dispatch"
	"qrscan/internal/scanner/frame"
	"qrscan/pkg/platform/sentinel"
)

const defaultRetention = 5 * time.Minute

// Manager starts sessions over leased cameras and keeps them addressable by
// id until shortly after they terminate.
type Manager struct {
	registry    *frame.Registry
	sessionOpts []Option
	retention   time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	wg       sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionOptions applies opts to every session the manager starts.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.sessionOpts = append(m.sessionOpts, opts...)
	}
}

// WithRetention controls how long terminated sessions stay visible.
func WithRetention(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.retention = d
	}
}

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(registry *frame.Registry, opts ...ManagerOption) (*Manager, error) {
	if registry == nil {
		return nil, errors.New("camera registry is required")
	}
	m := &Manager{
		registry:  registry,
		retention: defaultRetention,
		logger:    slog.Default(),
		sessions:  make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start leases the camera and runs a new session in the background. The
// session outlives ctx; stop it with Close or Shutdown.
func (m *Manager) Start(ctx context.Context, camera string, continuous bool, listener dispatch.Listener) (*Session, error) {
	src, err := m.registry.Lease(ctx, camera)
	if err != nil {
		return nil, err
	}

	opts := make([]Option, 0, len(m.sessionOpts)+3)
	opts = append(opts, m.sessionOpts...)
	opts = append(opts, WithSourceName(camera), WithLogger(m.logger))
	if continuous {
		opts = append(opts, WithContinuous())
	}
	sess, err := New(src, listener, opts...)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	m.wg.Go(func() {
		if err := sess.Run(runCtx); err != nil {
			m.logger.Warn("scan session ended with error", "session_id", sess.ID().String(), "error", err)
		}
		m.forgetLater(sess.ID())
	})

	select {
	case <-sess.Running():
	case <-sess.Done():
	}
	return sess, nil
}

func (m *Manager) forgetLater(id uuid.UUID) {
	if m.retention <= 0 {
		m.forget(id)
		return
	}
	time.AfterFunc(m.retention, func() { m.forget(id) })
}

func (m *Manager) forget(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Get returns a session by id, terminated ones included while retained.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	return sess, nil
}

// List returns snapshots ordered by id.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close stops a session without waiting for it.
func (m *Manager) Close(id uuid.UUID) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.Close()
	return nil
}

// Shutdown closes every session and waits for cameras to be released.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, sess := range m.sessions {
		sess.Close()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
