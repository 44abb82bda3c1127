package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

// Message is the envelope published for every session transition.
type Message struct {
	SessionID string             `json:"session_id"`
	Event     conversation.Event `json:"event"`
}

// Broadcaster publishes session events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel returns the pub/sub channel for a session.
func Channel(sessionID string) string {
	return fmt.Sprintf("session-events:%s", sessionID)
}

// Publish sends ev to the session's channel.
func (b *Broadcaster) Publish(ctx context.Context, sessionID string, ev conversation.Event) error {
	channel := Channel(sessionID)

	data, err := json.Marshal(Message{SessionID: sessionID, Event: ev})
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", ev.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", ev.Type,
		"phase", ev.Phase)
	return nil
}

// ObserverFor returns a conversation observer that publishes to sessionID.
// Publish errors are logged and dropped so a Redis hiccup never fails a move.
func (b *Broadcaster) ObserverFor(sessionID string) conversation.Observer {
	return func(ctx context.Context, ev conversation.Event) {
		_ = b.Publish(context.WithoutCancel(ctx), sessionID, ev)
	}
}

// Subscribe opens a subscription to a session's channel. Callers close it.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionID))
}

// Decode parses a payload received on a session channel.
func Decode(payload string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return m, nil
}
