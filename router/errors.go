package router

import "errors"

// Routing errors.
var (
	// ErrUnknownRecipient indicates a direct send to an unregistered id.
	ErrUnknownRecipient = errors.New("router: unknown recipient")
	// ErrRecipientUnavailable indicates a direct send to a known-offline
	// manager.
	ErrRecipientUnavailable = errors.New("router: recipient unavailable")
)
