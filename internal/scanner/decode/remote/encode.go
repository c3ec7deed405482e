package remote

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
)

const defaultJPEGQuality = 90

// EncodeJPEG serializes a frame for upload.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
