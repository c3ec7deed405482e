// Package frame exposes live camera input as discrete still frames.
//
// A Source never blocks waiting for the camera: when nothing is ready it
// returns ErrUnavailable and the scan loop skips the tick. Permission and
// device failures surface as *CameraError, which is terminal for a session.
package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"qrscan/pkg/platform/sentinel"
)

// ErrUnavailable means the camera has no frame ready yet (warming up, not
// enough buffered data). Callers retry on a later tick.
var ErrUnavailable = fmt.Errorf("frame: %w", sentinel.ErrUnavailable)

// Frame is a bitmap snapshot of the stream at CapturedAt. A frame belongs to a
// single decode attempt and must not be shared or mutated after Acquire.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Image      image.Image
	Source     string
}

func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Source wraps a camera and hands out frames on demand.
type Source interface {
	// Acquire returns the current frame, ErrUnavailable, or a *CameraError.
	Acquire(ctx context.Context) (*Frame, error)
	// Close releases the camera. It is safe to call more than once.
	Close() error
}

// CameraErrorKind classifies fatal camera failures.
type CameraErrorKind string

const (
	CameraPermissionDenied CameraErrorKind = "permission_denied"
	CameraDeviceError      CameraErrorKind = "device_error"
	CameraClosed           CameraErrorKind = "closed"
)

// CameraError is fatal for the session that owns the camera.
type CameraError struct {
	Kind   CameraErrorKind
	Source string
	Err    error
}

func (e *CameraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera %s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("camera %s: %s", e.Source, e.Kind)
}

func (e *CameraError) Unwrap() error {
	return e.Err
}

// IsCameraError reports whether err is a fatal camera failure.
func IsCameraError(err error) bool {
	var ce *CameraError
	return errors.As(err, &ce)
}

func newCameraError(kind CameraErrorKind, source string, err error) *CameraError {
	return &CameraError{Kind: kind, Source: source, Err: err}
}
