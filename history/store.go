// Package history records every sent message, in order, regardless of
// delivery outcome. The log exists for audit and testing; the router
// appends to it before any delivery attempt.
package history

import (
	"context"

	"github.com/trinity-symphony/coordination/types"
)

// Store is the message history log.
type Store interface {
	// Append adds a message to the end of the log.
	Append(ctx context.Context, msg *types.Message) error

	// List returns a snapshot of the log in append order.
	List(ctx context.Context) ([]*types.Message, error)

	// Len returns the number of logged messages.
	Len(ctx context.Context) (int, error)

	// Close releases store resources.
	Close() error
}
