//go:build gocv

package main

import (
	"context"

	"qrscan/internal/platform/config"
	"qrscan/internal/scanner/frame"
)

func deviceFactory(cam config.Camera) (frame.Factory, error) {
	return func(context.Context) (frame.Source, error) {
		return frame.OpenDevice(cam.Name, frame.DeviceConfig{Device: cam.Target, Width: 1280, Height: 720, FPS: 30})
	}, nil
}
