// Package local decodes QR codes in-process with gozxing. It never touches the
// network and is cheap enough to run on every scan tick.
package local

import (
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/frame"
)

// ProviderName labels attempts made by this engine.
const ProviderName = "zxing"

// Engine is safe for concurrent use; each Decode gets its own reader.
type Engine struct {
	hints map[gozxing.DecodeHintType]interface{}
	scale float64
	pool  sync.Pool
}

// Option configures an Engine.
type Option func(*Engine)

// WithScale decodes a downscaled grayscale copy of the frame. Values in (0,1)
// trade accuracy for speed on large camera frames; anything else disables it.
func WithScale(scale float64) Option {
	return func(e *Engine) {
		if scale > 0 && scale < 1 {
			e.scale = scale
		}
	}
}

// WithoutTryHarder disables the slower exhaustive search.
func WithoutTryHarder() Option {
	return func(e *Engine) {
		delete(e.hints, gozxing.DecodeHintType_TRY_HARDER)
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{hints: make(map[gozxing.DecodeHintType]interface{})}
	e.hints[gozxing.DecodeHintType_TRY_HARDER] = true
	e.hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE}
	for _, opt := range opts {
		opt(e)
	}
	e.pool.New = func() any { return qrcode.NewQRCodeReader() }
	return e
}

// Decode makes one attempt on f, retrying on the inverted image when the
// straight read misses. Every reader failure (nothing found, bad
// checksum, unsupported version) is reported as NotFound; none of them is an
// error worth escalating.
func (e *Engine) Decode(f *frame.Frame) decode.Result {
	if f == nil || f.Image == nil {
		return decode.NotFound(ProviderName, "empty frame")
	}
	img := f.Image
	if e.scale > 0 {
		img = downscale(img, e.scale)
	}

	luminance := gozxing.NewLuminanceSourceFromImage(img)

	reader := e.pool.Get().(gozxing.Reader)
	defer e.pool.Put(reader)

	if text, ok := e.read(reader, luminance); ok {
		return decode.Found(text, ProviderName)
	}
	// light-on-dark codes (phone screens in dark mode) only read inverted
	if text, ok := e.read(reader, luminance.Invert()); ok {
		return decode.Found(text, ProviderName)
	}
	return decode.NotFound(ProviderName, "no qr code")
}

func (e *Engine) read(reader gozxing.Reader, src gozxing.LuminanceSource) (string, bool) {
	defer reader.Reset()
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(src))
	if err != nil {
		return "", false
	}
	result, err := reader.Decode(bmp, e.hints)
	if err != nil || result == nil || result.GetText() == "" {
		return "", false
	}
	return result.GetText(), true
}

// downscale is a nearest-neighbour resize into grayscale, which is all the
// binarizer needs.
func downscale(src image.Image, scale float64) image.Image {
	b := src.Bounds()
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 21 || h < 21 {
		// smaller than a version 1 QR symbol
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := b.Min.Y + int(float64(y)/scale)
		for x := 0; x < w; x++ {
			sx := b.Min.X + int(float64(x)/scale)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
