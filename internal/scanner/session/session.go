// Package session runs the scan state machine.
//
// One goroutine per session owns every piece of mutable loop state. It
// selects over the capture ticker, the outstanding remote call, the cooldown
// timer, caller commands and cancellation. Local decoding runs inline on that
// goroutine; the remote call is the only thing that suspends, so it runs in
// its own goroutine behind a single-slot ticket and a hard deadline.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/dispatch"
	"qrscan/internal/scanner/frame"
	"qrscan/internal/scanner/identifier"
	"qrscan/internal/scanner/metrics"
	"qrscan/pkg/domain"
	"qrscan/pkg/platform/sentinel"
)

var (
	ErrNotRunning   = fmt.Errorf("session not running: %w", sentinel.ErrInvalidState)
	ErrTerminated   = fmt.Errorf("session terminated: %w", sentinel.ErrInvalidState)
	ErrAlreadyRun   = fmt.Errorf("session already started: %w", sentinel.ErrConflict)
	ErrInvalidPhase = fmt.Errorf("operation not allowed in current phase: %w", sentinel.ErrInvalidState)
	ErrBusy         = fmt.Errorf("decode attempt in flight: %w", sentinel.ErrConflict)
)

const (
	advisoryUnrecognized      = "code not recognized, try again"
	advisoryRemoteUnreachable = "remote decoder unreachable, still scanning"
	advisoryRemoteDisabled    = "remote decoder disabled after repeated failures"
)

// Session is one activation of the scanner over one camera.
type Session struct {
	id         uuid.UUID
	cfg        Config
	source     frame.Source
	sourceName string
	local      LocalDecoder
	remote     RemoteDecoder
	extractor  Extractor
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	// ticket admits one outstanding remote call. It is released by the call's
	// goroutine, so an abandoned call keeps it until the call actually returns.
	ticket *semaphore.Weighted

	started   atomic.Bool
	cmds      chan command
	closing   chan struct{}
	closeOnce sync.Once
	running   chan struct{}
	done      chan struct{}

	mu    sync.RWMutex
	state state
}

// state is the snapshot-visible part of the session. Written only by the loop
// goroutine, under mu.
type state struct {
	phase          Phase
	attempts       int
	misses         int
	remoteFailures int
	remoteDefeated bool
	inFlight       bool
	lastDNI        domain.DNI
	lastAt         time.Time
	detections     int
	advisory       string
	advisoryUntil  time.Time
	err            error
	closeReason    dispatch.Reason
	history        []decode.Attempt
	nextSeq        uint64
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithContinuous keeps scanning after each detection.
func WithContinuous() Option {
	return func(s *Session) {
		s.cfg.SingleShot = false
	}
}

func WithLocalDecoder(d LocalDecoder) Option {
	return func(s *Session) {
		s.local = d
	}
}

func WithRemoteDecoder(d RemoteDecoder) Option {
	return func(s *Session) {
		s.remote = d
	}
}

func WithExtractor(e Extractor) Option {
	return func(s *Session) {
		s.extractor = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithSourceName labels the camera in logs and snapshots.
func WithSourceName(name string) Option {
	return func(s *Session) {
		s.sourceName = name
	}
}

// WithID fixes the session id instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New builds an idle session. Run starts it.
func New(source frame.Source, listener dispatch.Listener, opts ...Option) (*Session, error) {
	if source == nil {
		return nil, errors.New("frame source is required")
	}
	if listener == nil {
		return nil, errors.New("listener is required")
	}

	s := &Session{
		id:        uuid.New(),
		cfg:       DefaultConfig(),
		source:    source,
		extractor: identifier.New(),
		logger:    slog.Default(),
		now:       time.Now,
		ticket:    semaphore.NewWeighted(1),
		cmds:      make(chan command),
		closing:   make(chan struct{}),
		running:   make(chan struct{}),
		done:      make(chan struct{}),
		state:     state{phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.local == nil && s.remote == nil {
		return nil, errors.New("at least one decoder is required")
	}

	dispatchOpts := []dispatch.Option{dispatch.WithLogger(s.logger)}
	if !s.cfg.SingleShot {
		dispatchOpts = append(dispatchOpts, dispatch.WithContinuous())
	}
	d, err := dispatch.New(listener, dispatchOpts...)
	if err != nil {
		return nil, err
	}
	s.dispatcher = d
	s.logger = s.logger.With("session_id", s.id.String(), "source", s.sourceName)
	s.state.history = make([]decode.Attempt, 0, s.cfg.HistorySize)
	return s, nil
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Running is closed once Run has entered the scanning loop and accepts
// commands.
func (s *Session) Running() <-chan struct{} {
	return s.running
}

// Done is closed once Run has returned and the camera is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives the session until it terminates. It returns nil after a
// single-shot detection or Close, ctx.Err() on cancellation and the
// *frame.CameraError on a fatal camera failure. The camera is released on
// every path.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer close(s.done)
	defer func() {
		if err := s.source.Close(); err != nil {
			s.logger.Warn("release camera", "error", err)
		}
	}()

	s.metrics.SessionStarted()
	l := &loop{s: s, ticker: time.NewTicker(s.cfg.TickInterval)}
	defer l.ticker.Stop()

	if err := l.transition(PhaseScanning); err != nil {
		return err
	}
	s.logger.Info("scan session started", "single_shot", s.cfg.SingleShot, "tick", s.cfg.TickInterval)
	close(s.running)

	for {
		select {
		case <-ctx.Done():
			l.terminate(dispatch.ReasonCancelled, nil)
			return ctx.Err()

		case <-s.closing:
			l.terminate(dispatch.ReasonCancelled, nil)
			return nil

		case cmd := <-s.cmds:
			err := l.handle(ctx, cmd.kind)
			cmd.reply <- err
			if frame.IsCameraError(err) {
				return l.fail(err)
			}

		case <-l.ticker.C:
			if err := l.tick(ctx); err != nil {
				return l.fail(err)
			}

		case r := <-l.remoteResults():
			l.remoteDone(r)

		case <-l.remoteDeadline():
			l.remoteTimedOut()

		case <-l.cooldownC():
			if l.cooldownExpired() {
				return nil
			}
		}
	}
}

// Pause stops capturing without releasing the camera.
func (s *Session) Pause() error {
	return s.send(cmdPause)
}

// Resume restarts capturing and clears remote failure counters.
func (s *Session) Resume() error {
	return s.send(cmdResume)
}

// Capture runs one local attempt right away and, if that misses, a remote
// attempt regardless of cadence. Results arrive through the listener.
func (s *Session) Capture() error {
	return s.send(cmdCapture)
}

// Close requests termination. It does not wait; use Done for that.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
}

func (s *Session) send(kind commandKind) error {
	if !s.started.Load() {
		return ErrNotRunning
	}
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
		return <-cmd.reply
	case <-s.done:
		return ErrTerminated
	}
}

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdCapture
)

type command struct {
	kind  commandKind
	reply chan error
}

type remoteResult struct {
	id     uint64
	result decode.Result
}

// pendingRemote is the single outstanding remote call.
type pendingRemote struct {
	id        uint64
	frameSeq  uint64
	startedAt time.Time
	cancel    context.CancelFunc
	results   chan remoteResult
	deadline  *time.Timer
}

// loop holds state private to the Run goroutine.
type loop struct {
	s        *Session
	ticker   *time.Ticker
	pending  *pendingRemote
	cooldown *time.Timer
	calls    uint64
}

func (l *loop) remoteResults() <-chan remoteResult {
	if l.pending == nil {
		return nil
	}
	return l.pending.results
}

func (l *loop) remoteDeadline() <-chan time.Time {
	if l.pending == nil {
		return nil
	}
	return l.pending.deadline.C
}

func (l *loop) cooldownC() <-chan time.Time {
	if l.cooldown == nil {
		return nil
	}
	return l.cooldown.C
}

func (l *loop) phase() Phase {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return l.s.state.phase
}

func (l *loop) transition(to Phase) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	from := l.s.state.phase
	if err := checkTransition(from, to); err != nil {
		l.s.logger.Error("phase transition rejected", "from", from, "to", to)
		return err
	}
	l.s.state.phase = to
	return nil
}

func (l *loop) update(fn func(st *state)) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	fn(&l.s.state)
}

func (l *loop) advise(msg string) {
	until := l.s.now().Add(l.s.cfg.AdvisoryTTL)
	l.update(func(st *state) {
		st.advisory = msg
		st.advisoryUntil = until
	})
}

func (l *loop) record(a decode.Attempt) {
	l.s.metrics.ObserveAttempt(string(a.Strategy), string(a.Outcome), a.Duration)
	l.update(func(st *state) {
		st.nextSeq++
		a.Seq = st.nextSeq
		if len(st.history) == cap(st.history) {
			copy(st.history, st.history[1:])
			st.history = st.history[:len(st.history)-1]
		}
		st.history = append(st.history, a)
	})
}

func (l *loop) handle(ctx context.Context, kind commandKind) error {
	switch kind {
	case cmdPause:
		if l.phase() != PhaseScanning {
			return ErrInvalidPhase
		}
		l.abandonRemote("paused")
		l.s.logger.Info("scan session paused")
		return l.transition(PhaseIdle)

	case cmdResume:
		if l.phase() != PhaseIdle {
			return ErrInvalidPhase
		}
		l.update(func(st *state) {
			st.misses = 0
			st.remoteFailures = 0
			st.remoteDefeated = false
		})
		l.s.logger.Info("scan session resumed")
		return l.transition(PhaseScanning)

	case cmdCapture:
		if l.phase() != PhaseScanning {
			return ErrInvalidPhase
		}
		if l.pending != nil {
			return ErrBusy
		}
		return l.attempt(ctx, true)
	}
	return fmt.Errorf("unknown command %d", kind)
}

// tick runs one scheduled attempt. It returns only fatal errors.
func (l *loop) tick(ctx context.Context) error {
	if l.phase() != PhaseScanning || l.pending != nil {
		return nil
	}
	return l.attempt(ctx, false)
}

// attempt acquires a frame, tries it locally and escalates to the remote
// decoder when the cadence allows (or always, when forced).
func (l *loop) attempt(ctx context.Context, forced bool) error {
	f, err := l.s.source.Acquire(ctx)
	if err != nil {
		if frame.IsCameraError(err) {
			return err
		}
		if !errors.Is(err, frame.ErrUnavailable) {
			l.s.logger.Debug("frame acquire failed", "error", err)
		}
		l.s.metrics.IncrementFrameUnavailable()
		return nil
	}

	l.update(func(st *state) { st.attempts++ })

	if l.s.local != nil {
		start := l.s.now()
		res := l.s.local.Decode(f)
		l.record(decode.Attempt{
			FrameSeq:  f.Seq,
			Strategy:  decode.StrategyLocal,
			StartedAt: start,
			Duration:  l.s.now().Sub(start),
			Outcome:   res.Outcome,
			Provider:  res.Provider,
			Reason:    res.Reason,
		})
		if res.IsFound() {
			l.decide(res.Payload, decode.StrategyLocal)
			return nil
		}
	}

	var eligible bool
	l.update(func(st *state) {
		st.misses++
		eligible = forced || l.remoteEligible(st)
	})
	if eligible && l.s.remote != nil {
		l.startRemote(ctx, f)
	}
	return nil
}

// remoteEligible applies the escalation threshold and stride. Without a
// local decoder every miss counts past the threshold from the first tick.
func (l *loop) remoteEligible(st *state) bool {
	if l.s.remote == nil || st.remoteDefeated {
		return false
	}
	threshold := l.s.cfg.RemoteEscalationThreshold
	if l.s.local == nil {
		threshold = 1
	}
	over := st.misses - threshold
	return over >= 0 && over%l.s.cfg.RemoteTickStride == 0
}

func (l *loop) startRemote(ctx context.Context, f *frame.Frame) {
	if !l.s.ticket.TryAcquire(1) {
		l.s.logger.Debug("remote attempt skipped, previous call still draining")
		return
	}

	l.calls++
	callCtx, cancel := context.WithTimeout(ctx, l.s.cfg.RemoteTimeout)
	p := &pendingRemote{
		id:        l.calls,
		frameSeq:  f.Seq,
		startedAt: l.s.now(),
		cancel:    cancel,
		results:   make(chan remoteResult, 1),
		deadline:  time.NewTimer(l.s.cfg.RemoteTimeout),
	}
	l.pending = p
	l.update(func(st *state) { st.inFlight = true })

	remote := l.s.remote
	go func() {
		defer l.s.ticket.Release(1)
		res := remote.Decode(callCtx, f)
		// buffered: never blocks even if the loop has moved on
		p.results <- remoteResult{id: p.id, result: res}
	}()
}

func (l *loop) clearRemote() *pendingRemote {
	p := l.pending
	if p == nil {
		return nil
	}
	p.cancel()
	p.deadline.Stop()
	l.pending = nil
	l.update(func(st *state) { st.inFlight = false })
	return p
}

// abandonRemote cancels the outstanding call; its result will be dropped.
func (l *loop) abandonRemote(reason string) {
	if p := l.clearRemote(); p != nil {
		l.s.logger.Debug("remote attempt abandoned", "call", p.id, "reason", reason)
	}
}

func (l *loop) remoteDone(r remoteResult) {
	if l.pending == nil || r.id != l.pending.id {
		return
	}
	p := l.clearRemote()
	l.record(decode.Attempt{
		FrameSeq:  p.frameSeq,
		Strategy:  decode.StrategyRemote,
		StartedAt: p.startedAt,
		Duration:  l.s.now().Sub(p.startedAt),
		Outcome:   r.result.Outcome,
		Provider:  r.result.Provider,
		Reason:    r.result.Reason,
	})

	switch r.result.Outcome {
	case decode.OutcomeFound:
		l.update(func(st *state) { st.remoteFailures = 0 })
		if l.phase() == PhaseScanning {
			l.decide(r.result.Payload, decode.StrategyRemote)
		}
	case decode.OutcomeUnreachable:
		l.remoteUnreachable(r.result.Reason)
	default:
		l.update(func(st *state) { st.remoteFailures = 0 })
	}
}

func (l *loop) remoteTimedOut() {
	p := l.clearRemote()
	if p == nil {
		return
	}
	l.record(decode.Attempt{
		FrameSeq:  p.frameSeq,
		Strategy:  decode.StrategyRemote,
		StartedAt: p.startedAt,
		Duration:  l.s.now().Sub(p.startedAt),
		Outcome:   decode.OutcomeUnreachable,
		Reason:    "timeout",
	})
	l.remoteUnreachable("timeout")
}

func (l *loop) remoteUnreachable(reason string) {
	var failures int
	var defeated bool
	l.update(func(st *state) {
		st.remoteFailures++
		failures = st.remoteFailures
		if failures >= l.s.cfg.MaxRemoteFailures && !st.remoteDefeated {
			st.remoteDefeated = true
			defeated = true
		}
	})
	if defeated {
		l.s.logger.Warn("remote decoding disabled", "consecutive_failures", failures, "reason", reason)
		l.advise(advisoryRemoteDisabled)
		return
	}
	l.s.logger.Info("remote decoder unreachable", "consecutive_failures", failures, "reason", reason)
	l.advise(advisoryRemoteUnreachable)
}

// decide runs extraction and the duplicate gate for a found payload.
func (l *loop) decide(payload string, strategy decode.Strategy) {
	if err := l.transition(PhaseDeciding); err != nil {
		return
	}

	dni, rule, err := l.s.extractor.ExtractWithRule(payload)
	if err != nil {
		l.s.logger.Info("payload not recognized", "strategy", strategy, "payload_len", len(payload))
		l.advise(advisoryUnrecognized)
		_ = l.transition(PhaseScanning)
		return
	}

	now := l.s.now()
	var duplicate bool
	l.update(func(st *state) {
		duplicate = st.lastDNI == dni && !st.lastAt.IsZero() && now.Sub(st.lastAt) < l.s.cfg.DuplicateWindow
		if !duplicate {
			st.lastDNI = dni
			st.lastAt = now
			st.misses = 0
		}
	})
	if duplicate {
		l.s.metrics.IncrementDuplicate()
		l.s.logger.Debug("duplicate scan suppressed", "strategy", strategy)
		_ = l.transition(PhaseScanning)
		return
	}

	if err := l.s.dispatcher.Detected(dni); err != nil {
		l.s.logger.Warn("detection not delivered", "error", err)
		_ = l.transition(PhaseScanning)
		return
	}
	l.update(func(st *state) { st.detections++ })
	l.s.metrics.IncrementDetection(string(rule))
	l.s.logger.Info("identifier detected", "strategy", strategy, "rule", rule)

	_ = l.transition(PhaseCoolingDown)
	l.cooldown = time.NewTimer(l.s.cfg.Cooldown)
}

// cooldownExpired reports whether the session is finished.
func (l *loop) cooldownExpired() bool {
	l.cooldown = nil
	if l.s.cfg.SingleShot {
		l.terminate(dispatch.ReasonDetected, nil)
		return true
	}
	_ = l.transition(PhaseScanning)
	return false
}

// fail terminates on a fatal camera error and returns it.
func (l *loop) fail(err error) error {
	l.s.logger.Error("camera failure, session terminated", "error", err)
	l.terminate(dispatch.ReasonCameraError, err)
	return err
}

func (l *loop) terminate(reason dispatch.Reason, err error) {
	l.abandonRemote("terminated")
	if l.cooldown != nil {
		l.cooldown.Stop()
		l.cooldown = nil
	}
	l.ticker.Stop()
	l.update(func(st *state) {
		st.phase = PhaseTerminated
		st.closeReason = reason
		st.err = err
	})
	l.s.dispatcher.Close(reason)
	l.s.metrics.SessionClosed(string(reason))
	l.s.logger.Info("scan session terminated", "reason", reason)
}
