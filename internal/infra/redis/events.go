package redis

import (
	"context"
	"encoding/json"

	"docstream/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// Channel is the single pub/sub channel live listeners subscribe to.
// Consumers filter by event type and by the ownership ids in the payload.
const Channel = "docstream:events"

var _ adapter.EventPublisher = (*EventBus)(nil)

// EventBus publishes {event, data} envelopes to Redis pub/sub. Publishing is
// explicitly non-critical: every failure is logged and dropped.
type EventBus struct {
	client RedisClient
	log    *zerolog.Logger
}

func NewEventBus(client RedisClient, log *zerolog.Logger) *EventBus {
	return &EventBus{client: client, log: log}
}

func (b *EventBus) Publish(ctx context.Context, event string, data map[string]any) {
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		b.log.Warn().Err(err).Str("event", event).Msg("event payload not serializable")
		return
	}
	if err := b.client.Publish(ctx, Channel, payload); err != nil {
		b.log.Warn().Err(err).Str("event", event).Msg("failed to publish event")
	}
}
