package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/decode/local"
	"qrscan/internal/scanner/frame"
	"qrscan/internal/scanner/identifier"
	"qrscan/pkg/domain"
	"qrscan/pkg/requestcontext"
	"qrscan/pkg/testutil"
)

type remoteFunc func(ctx context.Context, f *frame.Frame) decode.Result

func (fn remoteFunc) Decode(ctx context.Context, f *frame.Frame) decode.Result { return fn(ctx, f) }

func TestPipeline_LocalHit(t *testing.T) {
	remoteCalled := false
	p, err := New(
		WithLocal(local.New()),
		WithRemote(remoteFunc(func(context.Context, *frame.Frame) decode.Result {
			remoteCalled = true
			return decode.NotFound("stub", "")
		})),
	)
	require.NoError(t, err)

	det, err := p.Decode(context.Background(), "upload", testutil.QRImage(t, "https://example.edu/student/12345678", 300))

	require.NoError(t, err)
	assert.Equal(t, domain.DNI("12345678"), det.DNI)
	assert.Equal(t, identifier.RuleProfileURL, det.Rule)
	assert.Equal(t, decode.StrategyLocal, det.Strategy)
	assert.False(t, remoteCalled)
}

func TestPipeline_RemoteAfterLocalMiss(t *testing.T) {
	p, err := New(
		WithLocal(local.New()),
		WithRemote(remoteFunc(func(context.Context, *frame.Frame) decode.Result {
			return decode.Found("DNI: 87654321", "quickchart")
		})),
	)
	require.NoError(t, err)

	det, err := p.Decode(context.Background(), "upload", testutil.BlankImage(200))

	require.NoError(t, err)
	assert.Equal(t, domain.DNI("87654321"), det.DNI)
	assert.Equal(t, decode.StrategyRemote, det.Strategy)
	assert.Equal(t, "quickchart", det.Provider)
}

func TestPipeline_Failures(t *testing.T) {
	unreachable := remoteFunc(func(context.Context, *frame.Frame) decode.Result {
		return decode.Unreachable("quickchart", "timeout")
	})

	localOnly, err := New(WithLocal(local.New()))
	require.NoError(t, err)
	_, err = localOnly.Decode(context.Background(), "upload", testutil.BlankImage(200))
	assert.ErrorIs(t, err, ErrNoCode)

	withRemote, err := New(WithLocal(local.New()), WithRemote(unreachable))
	require.NoError(t, err)
	_, err = withRemote.Decode(context.Background(), "upload", testutil.BlankImage(200))
	assert.ErrorIs(t, err, ErrRemoteUnreachable)

	_, err = localOnly.Decode(context.Background(), "upload", testutil.QRImage(t, "hello world", 300))
	assert.ErrorIs(t, err, identifier.ErrUnrecognized)

	_, err = localOnly.Decode(context.Background(), "upload", nil)
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestNew_RequiresDecoder(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

func TestPipeline_StampsRequestTime(t *testing.T) {
	p, err := New(WithLocal(local.New()))
	require.NoError(t, err)
	requestTime := time.Date(2026, 3, 9, 8, 15, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), requestTime)

	det, err := p.Decode(ctx, "upload", testutil.QRImage(t, "12345678", 240))

	require.NoError(t, err)
	assert.Equal(t, requestTime, det.CapturedAt)
}
