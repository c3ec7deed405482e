//go:build gocv

package frame

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DeviceConfig carries capture hints. The driver may ignore any of them.
type DeviceConfig struct {
	// Device is a V4L2 index ("0") or a stream URL.
	Device string
	Width  int
	Height int
	FPS    float64
}

// DeviceSource reads frames from a local camera through OpenCV. Build with
// -tags gocv; it needs the OpenCV shared libraries at runtime.
type DeviceSource struct {
	name string

	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	seq     uint64
	closed  bool
}

// OpenDevice opens the camera. Failure to open is reported as a CameraError
// so sessions treat it like any other fatal camera failure.
func OpenDevice(name string, cfg DeviceConfig) (*DeviceSource, error) {
	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, newCameraError(CameraDeviceError, name, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, newCameraError(CameraPermissionDenied, name, errors.New("video capture is not opened"))
	}
	if cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, cfg.FPS)
	}
	return &DeviceSource{name: name, capture: capture, mat: gocv.NewMat()}, nil
}

func (d *DeviceSource) Acquire(_ context.Context) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, newCameraError(CameraClosed, d.name, nil)
	}
	if !d.capture.IsOpened() {
		return nil, newCameraError(CameraDeviceError, d.name, errors.New("device disconnected"))
	}
	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, ErrUnavailable
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, ErrUnavailable
	}
	d.seq++
	return &Frame{Seq: d.seq, CapturedAt: time.Now(), Image: img, Source: d.name}, nil
}

func (d *DeviceSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.mat.Close()
	return d.capture.Close()
}
