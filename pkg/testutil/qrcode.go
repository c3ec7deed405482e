package testutil

import (
	"image"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// QRImage renders content as a size x size grayscale QR code with a quiet zone,
// ready to be fed to a frame source in tests.
func QRImage(tb testing.TB, content string, size int) *image.Gray {
	tb.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		tb.Fatalf("encode qr %q: %v", content, err)
	}
	img := image.NewGray(image.Rect(0, 0, matrix.GetWidth(), matrix.GetHeight()))
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.Pix[y*img.Stride+x] = 0x00
			} else {
				img.Pix[y*img.Stride+x] = 0xff
			}
		}
	}
	return img
}

// BlankImage is a frame with nothing to decode.
func BlankImage(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}
