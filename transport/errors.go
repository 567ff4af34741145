package transport

import "errors"

// Delivery errors.
var (
	// ErrDeliveryFailed indicates delivery failed after exhausting
	// retries.
	ErrDeliveryFailed = errors.New("transport: delivery failed")
	// ErrDeliveryTimeout indicates delivery timed out after exhausting
	// retries.
	ErrDeliveryTimeout = errors.New("transport: delivery timeout")
	// ErrNoHandler indicates an internal manager has no registered
	// handler.
	ErrNoHandler = errors.New("transport: no handler registered")
)

// Inbound verification errors.
var (
	// ErrBadSignature indicates the request signature does not match.
	ErrBadSignature = errors.New("transport: bad signature")
	// ErrStaleTimestamp indicates the request timestamp is outside the
	// replay window.
	ErrStaleTimestamp = errors.New("transport: stale timestamp")
	// ErrReplayedNonce indicates the nonce was already seen inside the
	// replay window.
	ErrReplayedNonce = errors.New("transport: replayed nonce")
)
