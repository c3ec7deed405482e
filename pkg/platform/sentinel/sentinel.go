package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, frame sources and remote
// clients return these (optionally wrapped) so services can translate them into
// domain errors or scan-loop decisions.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrAlreadyUsed: resource already claimed (e.g. a DNI inside its dedupe window)
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: resource temporarily unavailable, retry later
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
