// Package broadcast implements the inter-context publish/subscribe protocol:
// the channel transports and the peer-level conflict detection and forced
// logout messaging layered on top.
package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/core/port"
)

// ErrBusClosed indicates the channel handle was already torn down.
var ErrBusClosed = errors.New("broadcast bus closed")

// LocalBus is an in-process Bus joining coordinators of the same process.
// Delivery is asynchronous, unordered, and at-most-once per subscriber.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[int]port.MessageHandler
	nextID int
	closed bool
}

// NewLocalBus constructs an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]port.MessageHandler)}
}

// Publish fans the envelope out to every subscriber. Handlers run on their
// own goroutines so a subscriber replying from inside its handler cannot
// deadlock the sender.
func (b *LocalBus) Publish(_ context.Context, msg domain.Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	handlers := make([]port.MessageHandler, 0, len(b.subs))
	for _, handler := range b.subs {
		handlers = append(handlers, handler)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go handler(msg)
	}
	return nil
}

// Subscribe registers a handler and returns its removal function.
func (b *LocalBus) Subscribe(_ context.Context, handler port.MessageHandler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}, nil
}

// Close drops all subscriptions. Messages published by peers afterwards are
// simply never seen, matching the no-replay contract.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]port.MessageHandler{}
	return nil
}
