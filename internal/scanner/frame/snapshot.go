package frame

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultSnapshotTimeout = 500 * time.Millisecond
	maxSnapshotBytes       = 8 << 20
)

// SnapshotSource pulls single stills from an IP camera snapshot endpoint
// (the JPEG URL most network cameras expose next to their MJPEG stream).
type SnapshotSource struct {
	name    string
	url     string
	client  *http.Client
	timeout time.Duration

	mu     sync.Mutex
	seq    uint64
	closed bool
	now    func() time.Time
}

// SnapshotOption configures a SnapshotSource.
type SnapshotOption func(*SnapshotSource)

// WithSnapshotTimeout bounds a single fetch; keep it well under the tick interval.
func WithSnapshotTimeout(d time.Duration) SnapshotOption {
	return func(s *SnapshotSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client, e.g. for digest auth transports.
func WithHTTPClient(c *http.Client) SnapshotOption {
	return func(s *SnapshotSource) {
		if c != nil {
			s.client = c
		}
	}
}

func NewSnapshotSource(name, url string, opts ...SnapshotOption) *SnapshotSource {
	s := &SnapshotSource{
		name:    name,
		url:     url,
		client:  &http.Client{},
		timeout: defaultSnapshotTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire fetches one still. Slow or 5xx answers mean "not ready"; auth
// failures and missing devices are fatal.
func (s *SnapshotSource) Acquire(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, newCameraError(CameraClosed, s.name, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, newCameraError(CameraDeviceError, s.name, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newCameraError(CameraPermissionDenied, s.name, fmt.Errorf("snapshot status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, newCameraError(CameraDeviceError, s.name, fmt.Errorf("snapshot status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, ErrUnavailable
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil || len(body) == 0 {
		return nil, ErrUnavailable
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		// partial JPEG while the camera rotates its buffer
		return nil, ErrUnavailable
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return &Frame{Seq: seq, CapturedAt: s.now(), Image: img, Source: s.name}, nil
}

func (s *SnapshotSource) classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newCameraError(CameraDeviceError, s.name, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return newCameraError(CameraDeviceError, s.name, err)
	}
	return ErrUnavailable
}

func (s *SnapshotSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}
