package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "wallet:"

// RedisNotifier publishes messages on a per-user Redis channel so realtime gateways can
// push balance changes to connected clients.
type RedisNotifier struct {
	cache *redis.Client
}

// NewRedisNotifier constructs a Redis pub/sub notifier.
func NewRedisNotifier(cache *redis.Client) *RedisNotifier {
	return &RedisNotifier{cache: cache}
}

// Channel returns the channel name messages for destination are published on.
func Channel(destination string) string {
	return channelPrefix + destination
}

// Send publishes the JSON-encoded message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if err := n.cache.Publish(ctx, Channel(message.Destination), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
