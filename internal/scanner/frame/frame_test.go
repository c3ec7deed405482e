package frame

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrscan/pkg/platform/sentinel"
)

func solid(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestMailbox(t *testing.T) {
	ctx := context.Background()

	t.Run("empty mailbox is unavailable", func(t *testing.T) {
		m := NewMailbox("door")
		_, err := m.Acquire(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("latest frame wins and is consumed once", func(t *testing.T) {
		m := NewMailbox("door")
		m.Publish(solid(4, 4))
		m.Publish(solid(8, 6))

		f, err := m.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), f.Seq)
		assert.Equal(t, 8, f.Width())
		assert.Equal(t, 6, f.Height())
		assert.Equal(t, uint64(1), m.Drops())

		_, err = m.Acquire(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("failure is fatal", func(t *testing.T) {
		m := NewMailbox("door")
		m.Fail(CameraPermissionDenied, errors.New("user denied"))
		_, err := m.Acquire(ctx)
		require.Error(t, err)
		assert.True(t, IsCameraError(err))
		var ce *CameraError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CameraPermissionDenied, ce.Kind)
	})

	t.Run("closed mailbox rejects acquire", func(t *testing.T) {
		m := NewMailbox("door")
		m.Publish(solid(2, 2))
		require.NoError(t, m.Close())
		_, err := m.Acquire(ctx)
		assert.True(t, IsCameraError(err))
	})
}

func TestStillSource(t *testing.T) {
	ctx := context.Background()

	t.Run("serves images in order with gaps", func(t *testing.T) {
		s := NewStillSource("files", []image.Image{solid(1, 1), nil, solid(2, 2)})

		f, err := s.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, f.Width())

		_, err = s.Acquire(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)

		f, err = s.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, f.Width())
		assert.Equal(t, uint64(2), f.Seq)

		_, err = s.Acquire(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, 0, s.Remaining())
	})

	t.Run("loop wraps around", func(t *testing.T) {
		s := NewStillSource("files", []image.Image{solid(1, 1)}, WithLoop())
		for i := 0; i < 3; i++ {
			_, err := s.Acquire(ctx)
			require.NoError(t, err)
		}
	})

	t.Run("missing file fails to load", func(t *testing.T) {
		_, err := LoadStills("files", []string{"does-not-exist.png"})
		assert.Error(t, err)
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.Black)
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSnapshotSource(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes a still", func(t *testing.T) {
		body := pngBytes(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		}))
		defer srv.Close()

		s := NewSnapshotSource("ipcam", srv.URL)
		f, err := s.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, f.Width())
		assert.Equal(t, "ipcam", f.Source)
	})

	t.Run("server error means not ready", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewSnapshotSource("ipcam", srv.URL).Acquire(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("garbage body means not ready", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not an image"))
		}))
		defer srv.Close()

		_, err := NewSnapshotSource("ipcam", srv.URL).Acquire(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("forbidden is a fatal permission error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := NewSnapshotSource("ipcam", srv.URL).Acquire(ctx)
		var ce *CameraError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CameraPermissionDenied, ce.Kind)
	})
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Register("door", func(context.Context) (Source, error) {
		return NewMailbox("door"), nil
	}))
	assert.Error(t, r.Register("door", nil))
	assert.Equal(t, []string{"door"}, r.Names())

	t.Run("unknown camera", func(t *testing.T) {
		_, err := r.Lease(ctx, "garage")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("exclusive lease released on close", func(t *testing.T) {
		src, err := r.Lease(ctx, "door")
		require.NoError(t, err)

		_, err = r.Lease(ctx, "door")
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		require.NoError(t, src.Close())
		require.NoError(t, src.Close())

		again, err := r.Lease(ctx, "door")
		require.NoError(t, err)
		require.NoError(t, again.Close())
	})

	t.Run("factory failure releases the lease", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("broken", func(context.Context) (Source, error) {
			return nil, errors.New("no device")
		}))
		_, err := r.Lease(ctx, "broken")
		require.Error(t, err)
		_, err = r.Lease(ctx, "broken")
		assert.EqualError(t, err, "no device")
	})
}
