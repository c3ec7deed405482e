package main

import (
	"context"
	"fmt"

	"qrscan/internal/platform/config"
	"qrscan/internal/scanner/frame"
)

func newRegistry(cameras []config.Camera) (*frame.Registry, error) {
	registry := frame.NewRegistry()
	for _, cam := range cameras {
		factory, err := cameraFactory(cam)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(cam.Name, factory); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func cameraFactory(cam config.Camera) (frame.Factory, error) {
	switch cam.Kind {
	case config.CameraSnapshot:
		return func(context.Context) (frame.Source, error) {
			return frame.NewSnapshotSource(cam.Name, cam.Target), nil
		}, nil
	case config.CameraDevice:
		return deviceFactory(cam)
	default:
		return nil, fmt.Errorf("camera %s: unknown kind %q", cam.Name, cam.Kind)
	}
}
