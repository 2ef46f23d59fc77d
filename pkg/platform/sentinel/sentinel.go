package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, devices and collaborator
// clients return these (optionally wrapped) so the flow can translate them into
// domain codes.
//
// - ErrNotFound: record does not exist in the directory, cache or store
// - ErrUnavailable: device or remote service temporarily unavailable
// - ErrNotReady: a video sink has no decoded frame yet (transient start failure)
// - ErrClosed: the owning session has been torn down
// - ErrInvalidState: operation not allowed in the current step
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrNotReady     = errors.New("not ready")
	ErrClosed       = errors.New("closed")
	ErrInvalidState = errors.New("invalid state")
)
