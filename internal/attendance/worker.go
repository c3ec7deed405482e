package attendance

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"qrscan/internal/scanner/dispatch"
	"qrscan/pkg/domain"
)

const (
	defaultQueueSize   = 64
	defaultRecentLimit = 50
)

// Worker consumes detections from scan sessions and runs them through the
// Service. It is a dispatch.Listener, so sessions hand identifiers straight to
// it; the blocking network work happens on the worker goroutine.
type Worker struct {
	service *Service
	inbox   chan domain.DNI
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	recent []Record
	limit  int
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.inbox = make(chan domain.DNI, n)
		}
	}
}

func WithRecentLimit(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.limit = n
		}
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithWorkerMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(service *Service, opts ...WorkerOption) (*Worker, error) {
	if service == nil {
		return nil, errors.New("attendance service is required")
	}
	w := &Worker{
		service: service,
		inbox:   make(chan domain.DNI, defaultQueueSize),
		logger:  slog.Default(),
		limit:   defaultRecentLimit,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnDetected enqueues without blocking the scan loop. A full queue drops the
// detection.
func (w *Worker) OnDetected(identifier string) {
	dni, err := domain.ParseDNI(identifier)
	if err != nil {
		w.logger.Warn("ignoring malformed identifier")
		return
	}
	select {
	case w.inbox <- dni:
	default:
		w.metrics.IncrementDropped()
		w.logger.Warn("attendance queue full, detection dropped")
	}
}

func (w *Worker) OnClosed(dispatch.Reason) {}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case dni := <-w.inbox:
			w.remember(w.service.Process(ctx, dni))
		}
	}
}

func (w *Worker) remember(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recent = append(w.recent, rec)
	if over := len(w.recent) - w.limit; over > 0 {
		w.recent = append([]Record(nil), w.recent[over:]...)
	}
}

// Recent returns processed records, newest last.
func (w *Worker) Recent() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Record(nil), w.recent...)
}
