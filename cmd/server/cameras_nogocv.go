//go:build !gocv

package main

import (
	"fmt"

	"qrscan/internal/platform/config"
	"qrscan/internal/scanner/frame"
)

func deviceFactory(cam config.Camera) (frame.Factory, error) {
	return nil, fmt.Errorf("camera %s: local devices need a build with -tags gocv", cam.Name)
}
