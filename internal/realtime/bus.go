package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"commune_backend/internal/logger"
)

// Handler consumes one event delivered on a channel. Bus delivery is
// at-least-once and unordered across channels; handlers must tolerate
// duplicates.
type Handler func(channel string, event Event)

// Bus is the process boundary of the pub/sub fabric. Every backend replica
// connects to the same bus; anything published by one replica reaches the
// subscribed consumers of all replicas, including the publisher's own.
type Bus interface {
	// Publish sends one event to a single channel. Fire-and-forget: the bus
	// retains no history for late subscribers.
	Publish(ctx context.Context, channel string, event Event) error

	// Subscribe registers a handler for the given channel patterns and starts
	// a consumer goroutine that runs until ctx is cancelled. Each call gets
	// its own consumer, so the hub and the materializer do not share a
	// delivery stream.
	Subscribe(ctx context.Context, handler Handler, patterns ...string) error

	Close() error
}

// ---------------------------------------------------------------------------
// Redis bus
// ---------------------------------------------------------------------------

type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(addr, password string, db int) *RedisBus {
	return &RedisBus{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handler Handler, patterns ...string) error {
	pubsub := b.client.PSubscribe(ctx, patterns...)
	// Receive the subscription confirmation so a failed connect surfaces
	// here instead of silently inside the consumer goroutine.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logger.Warn("Discarding malformed bus payload", "channel", msg.Channel, "error", err)
					continue
				}
				handler(msg.Channel, event)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

// ---------------------------------------------------------------------------
// In-memory bus
// ---------------------------------------------------------------------------

// MemoryBus is a single-process Bus used in tests and in deployments that run
// one replica without Redis. Per-subscriber delivery preserves publish order.
type MemoryBus struct {
	mu   sync.RWMutex
	subs []*memorySub
}

type memorySub struct {
	patterns []string
	handler  Handler
	queue    chan memoryMsg
}

type memoryMsg struct {
	channel string
	event   Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.matches(channel) {
			continue
		}
		// A subscriber that stops draining loses events rather than blocking
		// every publisher; the realtime path is best-effort by contract.
		select {
		case sub.queue <- memoryMsg{channel: channel, event: event}:
		default:
			logger.Warn("Memory bus subscriber queue full, dropping event", "channel", channel, "type", event.Type)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler, patterns ...string) error {
	sub := &memorySub{
		patterns: patterns,
		handler:  handler,
		queue:    make(chan memoryMsg, 1024),
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.remove(sub)
				return
			case msg := <-sub.queue:
				sub.handler(msg.channel, msg.event)
			}
		}
	}()
	return nil
}

func (b *MemoryBus) remove(target *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *MemoryBus) Close() error { return nil }

func (s *memorySub) matches(channel string) bool {
	for _, pattern := range s.patterns {
		if matchPattern(pattern, channel) {
			return true
		}
	}
	return false
}

// matchPattern supports the trailing-star globs used by ChannelPatterns,
// mirroring how the Redis bus is subscribed.
func matchPattern(pattern, channel string) bool {
	if pattern == channel {
		return true
	}
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		return len(channel) >= n-1 && channel[:n-1] == pattern[:n-1]
	}
	return false
}
