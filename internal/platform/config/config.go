// Package config reads process configuration from the environment. There are
// no config files; every value has a development default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strs "qrscan/pkg/platform/strings"
)

// Config is the full process configuration.
type Config struct {
	Server     Server
	Log        Log
	Scanner    Scanner
	Remote     Remote
	Cameras    []Camera
	Redis      RedisConfig
	Kafka      KafkaConfig
	Attendance Attendance
	Privacy    Privacy
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// APIToken guards the control endpoints. Empty disables the check.
	APIToken string
}

type Log struct {
	Level  string
	Format string
}

// Scanner holds the per-session knobs. Zero means "keep the session default".
type Scanner struct {
	TickInterval        time.Duration
	EscalationThreshold int
	RemoteStride        int
	Cooldown            time.Duration
	DuplicateWindow     time.Duration
	MaxRemoteFailures   int
	AdvisoryTTL         time.Duration
	SessionRetention    time.Duration
}

// Remote configures the decode services used when local decoding keeps
// missing. Disabled leaves sessions local-only.
type Remote struct {
	Disabled        bool
	PrimaryURL      string
	SecondaryURL    string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	JPEGQuality     int
}

// CameraKind selects the frame source implementation.
type CameraKind string

const (
	CameraSnapshot CameraKind = "snapshot"
	CameraDevice   CameraKind = "device"
)

// Camera is one entry of QRSCAN_CAMERAS, written as name=url for IP camera
// snapshots or name=device:N for a local capture device.
type Camera struct {
	Name   string
	Kind   CameraKind
	Target string
}

// RedisConfig configures the shared claim ledger. An empty URL keeps claims in
// process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures attendance event publishing. No brokers means events
// stay in memory.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Partitions  int32
	Replication int16
}

type Attendance struct {
	BaseURL  string
	Token    string
	ClaimTTL time.Duration
	Queue    int
}

type Privacy struct {
	HashKey string
}

const devHashKey = "dev-hash-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
// Malformed values are reported together.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	e := env{lookup: lookup}

	cfg := Config{
		Server: Server{
			Addr:            e.str("QRSCAN_ADDR", ":8080"),
			ShutdownTimeout: e.duration("QRSCAN_SHUTDOWN_TIMEOUT", 10*time.Second),
			APIToken:        e.str("QRSCAN_API_TOKEN", ""),
		},
		Log: Log{
			Level:  e.str("QRSCAN_LOG_LEVEL", "info"),
			Format: e.str("QRSCAN_LOG_FORMAT", "json"),
		},
		Scanner: Scanner{
			TickInterval:        e.duration("QRSCAN_TICK_INTERVAL", 0),
			EscalationThreshold: e.integer("QRSCAN_REMOTE_ESCALATION_THRESHOLD", 0),
			RemoteStride:        e.integer("QRSCAN_REMOTE_STRIDE", 0),
			Cooldown:            e.duration("QRSCAN_COOLDOWN", 0),
			DuplicateWindow:     e.duration("QRSCAN_DUPLICATE_WINDOW", 0),
			MaxRemoteFailures:   e.integer("QRSCAN_MAX_REMOTE_FAILURES", 0),
			AdvisoryTTL:         e.duration("QRSCAN_ADVISORY_TTL", 0),
			SessionRetention:    e.duration("QRSCAN_SESSION_RETENTION", 5*time.Minute),
		},
		Remote: Remote{
			Disabled:        e.boolean("QRSCAN_REMOTE_DISABLED", false),
			PrimaryURL:      e.str("QRSCAN_REMOTE_PRIMARY_URL", "https://quickchart.io/qr/read"),
			SecondaryURL:    e.str("QRSCAN_REMOTE_SECONDARY_URL", "https://api.qrserver.com/v1/read-qr-code/"),
			Timeout:         e.duration("QRSCAN_REMOTE_TIMEOUT", 5*time.Second),
			BreakerFailures: e.integer("QRSCAN_REMOTE_BREAKER_FAILURES", 3),
			BreakerCooldown: e.duration("QRSCAN_REMOTE_BREAKER_COOLDOWN", 30*time.Second),
			JPEGQuality:     e.integer("QRSCAN_REMOTE_JPEG_QUALITY", 90),
		},
		Redis: RedisConfig{
			URL:          e.str("QRSCAN_REDIS_URL", ""),
			PoolSize:     e.integer("QRSCAN_REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("QRSCAN_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("QRSCAN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("QRSCAN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("QRSCAN_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     e.list("QRSCAN_KAFKA_BROKERS"),
			Topic:       e.str("QRSCAN_KAFKA_TOPIC", "qrscan.attendance"),
			Partitions:  int32(e.integer("QRSCAN_KAFKA_PARTITIONS", 3)),
			Replication: int16(e.integer("QRSCAN_KAFKA_REPLICATION", 1)),
		},
		Attendance: Attendance{
			BaseURL:  e.str("QRSCAN_ATTENDANCE_URL", "http://localhost:3000/api"),
			Token:    e.str("QRSCAN_ATTENDANCE_TOKEN", ""),
			ClaimTTL: e.duration("QRSCAN_CLAIM_TTL", 10*time.Minute),
			Queue:    e.integer("QRSCAN_ATTENDANCE_QUEUE", 64),
		},
		Privacy: Privacy{
			// Use a default for development - should be overridden in production
			HashKey: e.str("QRSCAN_HASH_KEY", devHashKey),
		},
	}

	cameras, err := ParseCameras(e.str("QRSCAN_CAMERAS", ""))
	if err != nil {
		e.errs = append(e.errs, err)
	}
	cfg.Cameras = cameras

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseCameras reads a comma separated list of name=target pairs.
func ParseCameras(raw string) ([]Camera, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var (
		cameras []Camera
		errs    []error
	)
	seen := make(map[string]bool)
	for entry := range strings.SplitSeq(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, target, ok := strings.Cut(entry, "=")
		name, target = strings.TrimSpace(name), strings.TrimSpace(target)
		if !ok || name == "" || target == "" {
			errs = append(errs, fmt.Errorf("camera %q: want name=target", entry))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("camera %q: duplicate name", name))
			continue
		}
		seen[name] = true

		cam := Camera{Name: name, Kind: CameraSnapshot, Target: target}
		if device, ok := strings.CutPrefix(target, "device:"); ok {
			cam.Kind = CameraDevice
			cam.Target = device
		}
		cameras = append(cameras, cam)
	}
	return cameras, errors.Join(errs...)
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) list(key string) []string {
	v, _ := e.lookup(key)
	return strs.SplitList(v, ",")
}
