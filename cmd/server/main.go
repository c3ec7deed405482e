package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"qrscan/internal/attendance"
	"qrscan/internal/attendance/events"
	"qrscan/internal/platform/config"
	"qrscan/internal/platform/httpserver"
	"qrscan/internal/platform/kafka"
	"qrscan/internal/platform/logger"
	platformmetrics "qrscan/internal/platform/metrics"
	redisclient "qrscan/internal/platform/redis"
	"qrscan/internal/scanner/decode/local"
	"qrscan/internal/scanner/decode/remote"
	"qrscan/internal/scanner/handler"
	"qrscan/internal/scanner/ledger"
	scannermetrics "qrscan/internal/scanner/metrics"
	"qrscan/internal/scanner/pipeline"
	"qrscan/internal/scanner/session"
	httptransport "qrscan/internal/transport/http"
	"qrscan/pkg/platform/circuit"
	"qrscan/pkg/platform/privacy"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		slog.Error("qrscan server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher, err := privacy.NewHasher([]byte(cfg.Privacy.HashKey))
	if err != nil {
		return fmt.Errorf("privacy hasher: %w", err)
	}

	scanMetrics := scannermetrics.New()
	httpMetrics := platformmetrics.New()
	attendanceMetrics := attendance.NewMetrics(prometheus.DefaultRegisterer)
	health := map[string]httptransport.HealthCheck{}

	var claims ledger.Ledger = ledger.NewMemory()
	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		claims = ledger.NewRedis(rdb.Client)
		health["redis"] = rdb.Health
		log.Info("attendance claims shared through redis")
	}

	var publisher events.Publisher = events.NewMemory()
	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kc != nil {
		defer kc.Close()
		if err := events.EnsureTopic(ctx, kc.Client, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return err
		}
		if publisher, err = events.NewKafkaPublisher(kc.Client, cfg.Kafka.Topic); err != nil {
			return err
		}
		health["kafka"] = kc.Health
		log.Info("attendance events published to kafka", "topic", cfg.Kafka.Topic)
	}

	backend, err := attendance.NewClient(cfg.Attendance.BaseURL,
		attendance.WithToken(cfg.Attendance.Token),
		attendance.WithClientLogger(log),
	)
	if err != nil {
		return err
	}
	service, err := attendance.NewService(backend, hasher,
		attendance.WithLedger(claims),
		attendance.WithPublisher(publisher),
		attendance.WithClaimTTL(cfg.Attendance.ClaimTTL),
		attendance.WithLogger(log),
		attendance.WithMetrics(attendanceMetrics),
	)
	if err != nil {
		return err
	}
	worker, err := attendance.NewWorker(service,
		attendance.WithQueueSize(cfg.Attendance.Queue),
		attendance.WithWorkerLogger(log),
		attendance.WithWorkerMetrics(attendanceMetrics),
	)
	if err != nil {
		return err
	}

	engine := local.New()
	sessionCfg, err := sessionConfig(cfg.Scanner, cfg.Remote)
	if err != nil {
		return err
	}
	sessionOpts := []session.Option{
		session.WithConfig(sessionCfg),
		session.WithLocalDecoder(engine),
		session.WithMetrics(scanMetrics),
	}
	pipelineOpts := []pipeline.Option{
		pipeline.WithLocal(engine),
		pipeline.WithMetrics(scanMetrics),
		pipeline.WithLogger(log),
	}
	fallback, err := newFallback(cfg.Remote, log, scanMetrics)
	if err != nil {
		return err
	}
	if fallback != nil {
		sessionOpts = append(sessionOpts, session.WithRemoteDecoder(fallback))
		pipelineOpts = append(pipelineOpts, pipeline.WithRemote(fallback))
	}

	registry, err := newRegistry(cfg.Cameras)
	if err != nil {
		return err
	}
	if len(cfg.Cameras) == 0 {
		log.Warn("no cameras configured, only upload decoding is available")
	}
	manager, err := session.NewManager(registry,
		session.WithSessionOptions(sessionOpts...),
		session.WithRetention(cfg.Scanner.SessionRetention),
		session.WithManagerLogger(log),
	)
	if err != nil {
		return err
	}
	decoder, err := pipeline.New(pipelineOpts...)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:   log,
		Metrics:  httpMetrics,
		APIToken: cfg.Server.APIToken,
		Health:   health,
	},
		handler.New(manager, decoder, worker, log),
		attendance.NewHandler(worker),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting qrscan", "addr", cfg.Server.Addr, "cameras", registry.Names())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return errors.Join(srv.Shutdown(shutdownCtx), manager.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

// sessionConfig overlays the configured knobs on the session defaults.
func sessionConfig(sc config.Scanner, rc config.Remote) (session.Config, error) {
	c := session.DefaultConfig()
	if sc.TickInterval > 0 {
		c.TickInterval = sc.TickInterval
	}
	if sc.EscalationThreshold > 0 {
		c.RemoteEscalationThreshold = sc.EscalationThreshold
	}
	if sc.RemoteStride > 0 {
		c.RemoteTickStride = sc.RemoteStride
	}
	if sc.Cooldown > 0 {
		c.Cooldown = sc.Cooldown
	}
	if sc.DuplicateWindow > 0 {
		c.DuplicateWindow = sc.DuplicateWindow
	}
	if sc.MaxRemoteFailures > 0 {
		c.MaxRemoteFailures = sc.MaxRemoteFailures
	}
	if sc.AdvisoryTTL > 0 {
		c.AdvisoryTTL = sc.AdvisoryTTL
	}
	if rc.Timeout > 0 {
		c.RemoteTimeout = rc.Timeout
	}
	return c, c.Validate()
}

// newFallback returns nil when remote decoding is disabled.
func newFallback(rc config.Remote, log *slog.Logger, m *scannermetrics.Metrics) (*remote.Fallback, error) {
	if rc.Disabled || rc.PrimaryURL == "" {
		return nil, nil
	}
	client := &http.Client{}
	var secondary remote.Provider
	if rc.SecondaryURL != "" {
		secondary = remote.NewQRServer("qrserver", rc.SecondaryURL, client)
	}
	breaker := []circuit.Option{circuit.WithFailureThreshold(rc.BreakerFailures)}
	if rc.BreakerCooldown > 0 {
		breaker = append(breaker, circuit.WithCooldown(rc.BreakerCooldown))
	}
	return remote.New(remote.NewQuickChart("quickchart", rc.PrimaryURL, client), secondary,
		remote.WithTimeout(rc.Timeout),
		remote.WithJPEGQuality(rc.JPEGQuality),
		remote.WithLogger(log),
		remote.WithMetrics(m),
		remote.WithBreakerOptions(breaker...),
	)
}
