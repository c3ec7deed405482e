package session

import (
	"context"

	"qrscan/internal/scanner/decode"
	"qrscan/internal/scanner/frame"
	"qrscan/internal/scanner/identifier"
	"qrscan/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks LocalDecoder,RemoteDecoder,Extractor

// LocalDecoder is a synchronous, in-process decode attempt.
type LocalDecoder interface {
	Decode(f *frame.Frame) decode.Result
}

// RemoteDecoder is the only suspending decode strategy. Implementations must
// honor ctx cancellation.
type RemoteDecoder interface {
	Decode(ctx context.Context, f *frame.Frame) decode.Result
}

// Extractor turns raw payloads into identifiers.
type Extractor interface {
	ExtractWithRule(payload string) (domain.DNI, identifier.Rule, error)
}
