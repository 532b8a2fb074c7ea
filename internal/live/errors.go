package live

import "errors"

// Errors reported to WebSocket clients as `error` events. None is fatal to the
// process; each is isolated to the single inbound event that raised it.
var (
	ErrSessionExists          = errors.New("session already exists")
	ErrSessionNotFound        = errors.New("session not found")
	ErrTargetNotFound         = errors.New("target not found")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidSignalingData   = errors.New("invalid signaling data")
)
