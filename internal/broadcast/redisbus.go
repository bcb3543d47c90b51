package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/core/port"
)

// RedisBus joins coordinators across processes through one fixed Redis
// pub/sub channel. Redis pub/sub matches the broadcast contract exactly:
// unordered, at-most-once, delivered only to currently subscribed peers,
// nothing persisted. Unlike an in-browser channel the transport loops
// published messages back to the publisher; the peer layer filters those by
// sender identity.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	subs   []*redis.PubSub
}

// NewRedisBus constructs a bus over an established Redis client.
func NewRedisBus(client *redis.Client, channel string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish sends the envelope to every subscriber of the channel.
func (b *RedisBus) Publish(ctx context.Context, msg domain.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode broadcast message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe attaches a handler to the channel. The returned function closes
// the underlying subscription.
func (b *RedisBus) Subscribe(ctx context.Context, handler port.MessageHandler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	b.subs = append(b.subs, pubsub)
	b.mu.Unlock()

	// Confirm the subscription before returning so a conflict check issued
	// right after Start cannot race an unsubscribed channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	go func() {
		for raw := range pubsub.Channel() {
			var msg domain.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				b.logger.Warn("discarding malformed broadcast payload", zap.Error(err))
				continue
			}
			handler(msg)
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}

// Close tears down every subscription held by this handle.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, pubsub := range b.subs {
		_ = pubsub.Close()
	}
	b.subs = nil
	return nil
}
