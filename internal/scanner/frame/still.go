package frame

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for LoadStills
	_ "image/png"
	"os"
	"sync"
	"time"
)

// StillSource replays a fixed list of images, one per Acquire. A nil entry
// stands for a tick where the camera had nothing buffered. Once the list is
// exhausted it either wraps around (Loop) or keeps returning ErrUnavailable.
type StillSource struct {
	name   string
	images []image.Image
	loop   bool

	mu     sync.Mutex
	next   int
	seq    uint64
	closed bool
	now    func() time.Time
}

// StillOption configures a StillSource.
type StillOption func(*StillSource)

// WithLoop replays the images forever.
func WithLoop() StillOption {
	return func(s *StillSource) {
		s.loop = true
	}
}

// NewStillSource serves images in order.
func NewStillSource(name string, images []image.Image, opts ...StillOption) *StillSource {
	s := &StillSource{name: name, images: images, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadStills decodes image files (JPEG or PNG) into a StillSource.
func LoadStills(name string, paths []string, opts ...StillOption) (*StillSource, error) {
	images := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, err := decodeFile(p)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return NewStillSource(name, images, opts...), nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func (s *StillSource) Acquire(_ context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, newCameraError(CameraClosed, s.name, nil)
	}
	if s.next >= len(s.images) {
		if !s.loop || len(s.images) == 0 {
			return nil, ErrUnavailable
		}
		s.next = 0
	}
	img := s.images[s.next]
	s.next++
	if img == nil {
		return nil, ErrUnavailable
	}
	s.seq++
	return &Frame{Seq: s.seq, CapturedAt: s.now(), Image: img, Source: s.name}, nil
}

// Remaining reports how many entries are left before the list is exhausted.
func (s *StillSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images) - s.next
}

func (s *StillSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
