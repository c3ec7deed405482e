package local

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/frame"
	"qrscan/pkg/testutil"
)

func TestEngine_Decode(t *testing.T) {
	engine := New()

	t.Run("reads a plain dni", func(t *testing.T) {
		f := &frame.Frame{Seq: 1, CapturedAt: time.Now(), Image: testutil.QRImage(t, "12345678", 240)}
		res := engine.Decode(f)
		assert.Equal(t, decode.OutcomeFound, res.Outcome)
		assert.Equal(t, "12345678", res.Payload)
		assert.Equal(t, ProviderName, res.Provider)
	})

	t.Run("reads a json payload", func(t *testing.T) {
		payload := `{"type":"attendance","dni":"87654321"}`
		res := engine.Decode(&frame.Frame{Image: testutil.QRImage(t, payload, 300)})
		assert.True(t, res.IsFound())
		assert.Equal(t, payload, res.Payload)
	})

	t.Run("reads a light on dark code", func(t *testing.T) {
		img := testutil.QRImage(t, "12345678", 240)
		for i := range img.Pix {
			img.Pix[i] = 255 - img.Pix[i]
		}
		res := engine.Decode(&frame.Frame{Image: img})
		assert.True(t, res.IsFound())
		assert.Equal(t, "12345678", res.Payload)
	})

	t.Run("blank frame is not found", func(t *testing.T) {
		res := engine.Decode(&frame.Frame{Image: testutil.BlankImage(200)})
		assert.Equal(t, decode.OutcomeNotFound, res.Outcome)
	})

	t.Run("nil frame is not found", func(t *testing.T) {
		assert.Equal(t, decode.OutcomeNotFound, engine.Decode(nil).Outcome)
	})
}

func TestEngine_DecodeDownscaled(t *testing.T) {
	engine := New(WithScale(0.5))
	res := engine.Decode(&frame.Frame{Image: testutil.QRImage(t, "1234567890", 480)})
	assert.True(t, res.IsFound())
	assert.Equal(t, "1234567890", res.Payload)
}

func TestDownscale_SkipsTinyImages(t *testing.T) {
	src := testutil.BlankImage(30)
	assert.Same(t, src, downscale(src, 0.5))
}
