package frame

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"qrscan/pkg/platform/sentinel"
)

// Factory opens a fresh Source for a session.
type Factory func(ctx context.Context) (Source, error)

// Registry maps camera names to factories and enforces that a camera is
// owned by at most one session at a time.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	leased    map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		leased:    make(map[string]bool),
	}
}

// Register adds a named camera.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("camera %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Names lists registered cameras in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lease opens the named camera for exclusive use. The returned Source releases
// the lease when closed. Returns sentinel.ErrNotFound for unknown cameras and
// sentinel.ErrConflict when another session owns it.
func (r *Registry) Lease(ctx context.Context, name string) (Source, error) {
	r.mu.Lock()
	factory, ok := r.factories[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("camera %s: %w", name, sentinel.ErrNotFound)
	}
	if r.leased[name] {
		r.mu.Unlock()
		return nil, fmt.Errorf("camera %s: %w", name, sentinel.ErrConflict)
	}
	r.leased[name] = true
	r.mu.Unlock()

	src, err := factory(ctx)
	if err != nil {
		r.release(name)
		return nil, err
	}
	return &leasedSource{Source: src, release: func() { r.release(name) }}, nil
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.leased, name)
}

type leasedSource struct {
	Source
	once    sync.Once
	release func()
}

func (l *leasedSource) Close() error {
	var err error
	l.once.Do(func() {
		err = l.Source.Close()
		l.release()
	})
	return err
}
