package attendance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"qrscan/internal/attendance/events"
	"qrscan/internal/scanner/ledger"
	"qrscan/pkg/domain"
	"qrscan/pkg/platform/privacy"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Backend

// DefaultClaimTTL keeps a student from being registered twice in quick
// succession, across sessions and instances.
const DefaultClaimTTL = 10 * time.Minute

// Backend is the attendance system of record.
type Backend interface {
	Validate(ctx context.Context, dni domain.DNI) (*Validation, error)
	Register(ctx context.Context, dni domain.DNI) (*Registration, error)
}

// Service turns a detected identifier into a registered check-in:
// claim, validate, register, publish.
type Service struct {
	backend   Backend
	ledger    ledger.Ledger
	publisher events.Publisher
	hasher    *privacy.Hasher
	claimTTL  time.Duration
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLedger(l ledger.Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithClaimTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(backend Backend, hasher *privacy.Hasher, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, errors.New("attendance backend is required")
	}
	if hasher == nil {
		return nil, errors.New("privacy hasher is required")
	}
	s := &Service{
		backend:   backend,
		ledger:    ledger.NewMemory(),
		publisher: events.NewMemory(),
		hasher:    hasher,
		claimTTL:  DefaultClaimTTL,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process runs the check-in flow for one identifier. Failures are reported in
// the returned Record, never as errors.
func (s *Service) Process(ctx context.Context, dni domain.DNI) (rec Record) {
	start := s.now()
	subject := s.hasher.Hash(dni.String())
	rec.DNI = privacy.MaskDNI(dni.String())
	logger := s.logger.With("subject", subject)

	defer func() {
		rec.ProcessedAt = s.now()
		s.metrics.ObserveProcess(rec.Outcome, rec.ProcessedAt.Sub(start))
		s.publish(ctx, subject, rec)
	}()

	claimed, err := s.ledger.Claim(ctx, subject, s.claimTTL)
	if err != nil {
		// the backend still rejects true duplicates
		logger.WarnContext(ctx, "attendance ledger unavailable, continuing unclaimed", "error", err)
		claimed = true
	}
	if !claimed {
		rec.Outcome = OutcomeDuplicate
		rec.Message = "already processed recently"
		return rec
	}

	v, err := s.backend.Validate(ctx, dni)
	switch {
	case errors.Is(err, ErrStudentNotFound):
		s.release(ctx, subject)
		rec.Outcome = OutcomeNotFound
		rec.Message = "student not found"
		return rec
	case err != nil:
		s.release(ctx, subject)
		logger.ErrorContext(ctx, "validate student", "error", err)
		rec.Outcome = OutcomeFailed
		rec.Message = "could not validate student"
		return rec
	case !v.Valid:
		s.release(ctx, subject)
		rec.Outcome = OutcomeInvalid
		rec.Message = "qr not valid"
		return rec
	}
	if v.Student != nil {
		rec.StudentName = v.Student.FullName()
	}

	if _, err := s.backend.Register(ctx, dni); err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			rec.Outcome = OutcomeRejected
			rec.Message = rejected.Message
			return rec
		}
		s.release(ctx, subject)
		logger.ErrorContext(ctx, "register attendance", "error", err)
		rec.Outcome = OutcomeFailed
		rec.Message = "could not register attendance"
		return rec
	}

	rec.Outcome = OutcomeRegistered
	logger.InfoContext(ctx, "attendance registered")
	return rec
}

func (s *Service) release(ctx context.Context, subject string) {
	if err := s.ledger.Release(ctx, subject); err != nil {
		s.logger.WarnContext(ctx, "release attendance claim", "subject", subject, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, subject string, rec Record) {
	t := events.TypeRejected
	switch rec.Outcome {
	case OutcomeRegistered:
		t = events.TypeCheckIn
	case OutcomeDuplicate:
		t = events.TypeSkipped
	}
	if err := s.publisher.Publish(ctx, events.New(t, subject, string(rec.Outcome), rec.Message)); err != nil {
		s.logger.WarnContext(ctx, "publish attendance event", "subject", subject, "error", err)
	}
}
