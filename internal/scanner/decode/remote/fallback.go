package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/frame"
	"qrscan/internal/scanner/metrics"
	"qrscan/pkg/platform/circuit"
)

const (
	DefaultTimeout = 5 * time.Second

	// maxProviders caps the cascade at a primary and one secondary.
	maxProviders = 2

	defaultBreakerCooldown = 30 * time.Second
)

// Fallback decodes frames by uploading them to external services. A call
// never outlives its timeout and never reaches more than two providers.
type Fallback struct {
	providers []Provider
	breakers  map[string]*circuit.Breaker
	timeout   time.Duration
	quality   int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures a Fallback.
type Option func(*Fallback)

// WithTimeout bounds the whole call, cascade included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fallback) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithJPEGQuality(q int) Option {
	return func(f *Fallback) {
		f.quality = q
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fallback) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fallback) {
		f.metrics = m
	}
}

// WithBreakerOptions configures the per-provider circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(f *Fallback) {
		for _, p := range f.providers {
			withDefaults := append([]circuit.Option{circuit.WithCooldown(defaultBreakerCooldown)}, opts...)
			f.breakers[p.ID()] = circuit.New(p.ID(), withDefaults...)
		}
	}
}

// New builds a Fallback over a primary provider and an optional secondary.
func New(primary Provider, secondary Provider, opts ...Option) (*Fallback, error) {
	if primary == nil {
		return nil, errors.New("primary provider is required")
	}
	providers := []Provider{primary}
	if secondary != nil {
		if secondary.ID() == primary.ID() {
			return nil, fmt.Errorf("duplicate provider id %q", primary.ID())
		}
		providers = append(providers, secondary)
	}

	f := &Fallback{
		providers: providers,
		breakers:  make(map[string]*circuit.Breaker, len(providers)),
		timeout:   DefaultTimeout,
		quality:   defaultJPEGQuality,
		logger:    slog.Default(),
		tracer:    otel.Tracer("qrscan/scanner/remote"),
	}
	for _, p := range providers {
		f.breakers[p.ID()] = circuit.New(p.ID(), circuit.WithCooldown(defaultBreakerCooldown))
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Decode runs the cascade for one frame. It always returns a Result;
// cancellation and timeouts come back as Unreachable.
func (f *Fallback) Decode(ctx context.Context, fr *frame.Frame) decode.Result {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	ctx, span := f.tracer.Start(ctx, "remote.Decode")
	defer span.End()
	if fr != nil {
		span.SetAttributes(attribute.Int64("frame.seq", int64(fr.Seq)))
	}

	if fr == nil || fr.Image == nil {
		return decode.NotFound("", "no image")
	}
	body, err := EncodeJPEG(fr.Image, f.quality)
	if err != nil {
		span.RecordError(err)
		return decode.NotFound("", "encode frame: "+err.Error())
	}

	last := decode.Unreachable("", "all providers unavailable")
	for i, p := range f.providers {
		if i >= maxProviders {
			break
		}
		breaker := f.breakers[p.ID()]
		if !breaker.Allow() {
			f.logger.DebugContext(ctx, "remote provider skipped, circuit open", "provider", p.ID())
			last = decode.Unreachable(p.ID(), "circuit open")
			continue
		}

		res := f.call(ctx, p, breaker, body)
		if res.Outcome != decode.OutcomeUnreachable {
			span.SetAttributes(
				attribute.String("remote.provider", p.ID()),
				attribute.String("remote.outcome", string(res.Outcome)),
			)
			return res
		}
		last = res
		if ctx.Err() != nil {
			break
		}
	}

	span.SetStatus(codes.Error, last.Reason)
	return last
}

func (f *Fallback) call(ctx context.Context, p Provider, breaker *circuit.Breaker, body []byte) decode.Result {
	start := time.Now()
	payload, err := p.Decode(ctx, body)
	elapsed := time.Since(start)

	var res decode.Result
	switch {
	case err == nil:
		res = decode.Found(payload, p.ID())
		f.recordSuccess(p.ID(), breaker)
	case errors.Is(err, ErrNoCode):
		res = decode.NotFound(p.ID(), "no code detected")
		f.recordSuccess(p.ID(), breaker)
	case GetCategory(err) == ErrorBadData:
		// The service is up but said nothing usable.
		res = decode.NotFound(p.ID(), err.Error())
		f.recordSuccess(p.ID(), breaker)
	default:
		res = decode.Unreachable(p.ID(), string(GetCategory(err)))
		f.recordFailure(p.ID(), breaker)
		f.logger.WarnContext(ctx, "remote provider unreachable",
			"provider", p.ID(),
			"category", GetCategory(err),
			"retryable", IsRetryable(err),
			"error", err,
		)
	}
	f.metrics.ObserveRemoteCall(p.ID(), string(res.Outcome), elapsed)
	return res
}

func (f *Fallback) recordSuccess(id string, breaker *circuit.Breaker) {
	if _, change := breaker.RecordSuccess(); change.Closed {
		f.logger.Info("remote provider circuit closed", "provider", id)
		f.metrics.IncrementBreakerTransition(id, circuit.StateClosed.String())
	}
}

func (f *Fallback) recordFailure(id string, breaker *circuit.Breaker) {
	if _, change := breaker.RecordFailure(); change.Opened {
		f.logger.Warn("remote provider circuit opened", "provider", id)
		f.metrics.IncrementBreakerTransition(id, circuit.StateOpen.String())
	}
}

// Providers lists provider ids in cascade order.
func (f *Fallback) Providers() []string {
	ids := make([]string, len(f.providers))
	for i, p := range f.providers {
		ids[i] = p.ID()
	}
	return ids
}

// BreakerState reports the breaker for a provider id.
func (f *Fallback) BreakerState(id string) (circuit.State, bool) {
	b, ok := f.breakers[id]
	if !ok {
		return circuit.StateClosed, false
	}
	return b.State(), true
}
