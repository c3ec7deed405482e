// Package pipeline decodes a single still image end to end: local decode,
// remote fallback on a miss, identifier extraction. It backs the upload
// endpoint and the scan command, where there is no session to arbitrate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/frame"
	"qrscan/internal/scanner/identifier"
	"qrscan/internal/scanner/metrics"
	"qrscan/pkg/domain"
	"qrscan/pkg/platform/sentinel"
	"qrscan/pkg/requestcontext"
)

var (
	ErrNoCode            = fmt.Errorf("no qr code found: %w", sentinel.ErrNotFound)
	ErrRemoteUnreachable = fmt.Errorf("remote decoder unreachable: %w", sentinel.ErrUnavailable)
)

type LocalDecoder interface {
	Decode(f *frame.Frame) decode.Result
}

type RemoteDecoder interface {
	Decode(ctx context.Context, f *frame.Frame) decode.Result
}

type Extractor interface {
	ExtractWithRule(payload string) (domain.DNI, identifier.Rule, error)
}

// Detection is a decoded and recognized identifier.
type Detection struct {
	DNI        domain.DNI      `json:"dni"`
	Rule       identifier.Rule `json:"rule"`
	Strategy   decode.Strategy `json:"strategy"`
	Provider   string          `json:"provider,omitempty"`
	CapturedAt time.Time       `json:"captured_at"`
}

type Pipeline struct {
	local     LocalDecoder
	remote    RemoteDecoder
	extractor Extractor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	seq       atomic.Uint64
	now       func() time.Time
}

type Option func(*Pipeline)

func WithLocal(d LocalDecoder) Option {
	return func(p *Pipeline) {
		p.local = d
	}
}

func WithRemote(d RemoteDecoder) Option {
	return func(p *Pipeline) {
		p.remote = d
	}
}

func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		extractor: identifier.New(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.local == nil && p.remote == nil {
		return nil, errors.New("at least one decoder is required")
	}
	return p, nil
}

// Decode runs img through the strategies in order. The remote decoder is only
// consulted when the local one misses.
func (p *Pipeline) Decode(ctx context.Context, source string, img image.Image) (Detection, error) {
	if img == nil {
		return Detection{}, ErrNoCode
	}
	fr := &frame.Frame{Seq: p.seq.Add(1), CapturedAt: requestcontext.Now(ctx), Image: img, Source: source}

	var res decode.Result
	if p.local != nil {
		start := p.now()
		res = p.local.Decode(fr)
		p.metrics.ObserveAttempt(string(decode.StrategyLocal), string(res.Outcome), p.now().Sub(start))
		if res.IsFound() {
			return p.extract(fr, res, decode.StrategyLocal)
		}
	}

	if p.remote == nil {
		return Detection{}, ErrNoCode
	}
	start := p.now()
	res = p.remote.Decode(ctx, fr)
	p.metrics.ObserveAttempt(string(decode.StrategyRemote), string(res.Outcome), p.now().Sub(start))
	switch res.Outcome {
	case decode.OutcomeFound:
		return p.extract(fr, res, decode.StrategyRemote)
	case decode.OutcomeUnreachable:
		p.logger.WarnContext(ctx, "remote decode unreachable", "source", source, "reason", res.Reason)
		return Detection{}, ErrRemoteUnreachable
	default:
		return Detection{}, ErrNoCode
	}
}

func (p *Pipeline) extract(fr *frame.Frame, res decode.Result, strategy decode.Strategy) (Detection, error) {
	dni, rule, err := p.extractor.ExtractWithRule(res.Payload)
	if err != nil {
		return Detection{}, err
	}
	p.metrics.IncrementDetection(string(rule))
	return Detection{DNI: dni, Rule: rule, Strategy: strategy, Provider: res.Provider, CapturedAt: fr.CapturedAt}, nil
}
