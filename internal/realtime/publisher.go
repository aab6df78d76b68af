package realtime

import (
	"context"
	"time"

	"commune_backend/internal/logger"
)

const (
	publishAttempts = 3
	publishDelay    = 100 * time.Millisecond
	publishTimeout  = 2 * time.Second
)

// Publisher serializes domain payloads into event envelopes and pushes them
// onto the bus. Domain services call it strictly after their transaction has
// committed: a publish failure is logged and dropped, never propagated back
// into the write path, because clients can always reconcile over REST.
type Publisher struct {
	bus Bus
}

func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Publish builds the envelope and sends it with a bounded local retry.
// Always returns nil-equivalent behavior to callers; failures surface only in
// the log.
func (p *Publisher) Publish(ctx context.Context, channel, eventType string, data any) {
	event, err := NewEvent(eventType, data)
	if err != nil {
		logger.Error("Failed to encode event payload", "channel", channel, "type", eventType, "error", err)
		return
	}
	p.publishEvent(ctx, channel, event)
}

// PublishEvent re-publishes an already-built envelope, preserving its
// original timestamp. Used by the materializer when it fans a domain event
// out to user-scoped channels.
func (p *Publisher) PublishEvent(ctx context.Context, channel string, event Event) {
	p.publishEvent(ctx, channel, event)
}

func (p *Publisher) publishEvent(ctx context.Context, channel string, event Event) {
	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		lastErr = p.bus.Publish(attemptCtx, channel, event)
		cancel()
		if lastErr == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(publishDelay)
	}
	logger.Error("Dropping event after publish retries exhausted",
		"channel", channel,
		"type", event.Type,
		"attempts", publishAttempts,
		"error", lastErr,
	)
}
