package port

import (
	"context"

	"github.com/metrolabs/equiptrack/internal/core/domain"
)

// MessageHandler consumes one broadcast envelope. Handlers run on the bus's
// delivery goroutines and must not block indefinitely.
type MessageHandler func(msg domain.Message)

// Bus is the shared, origin-scoped broadcast channel joining every client
// context. Delivery is unordered and at-most-once per subscriber; peers that
// are not currently subscribed never see a message and missed messages are
// not replayed.
type Bus interface {
	// Publish sends the envelope to all current subscribers, including the
	// publisher's own subscription on transports that loop back. Senders are
	// filtered by the protocol layer, not the bus.
	Publish(ctx context.Context, msg domain.Message) error
	// Subscribe registers a handler and returns a function that removes it.
	Subscribe(ctx context.Context, handler MessageHandler) (func(), error)
	// Close tears down the channel handle. Used on context shutdown.
	Close() error
}
