package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeliveryLog remembers which intents were delivered so a redelivered
// Kafka message does not send the same email twice.
type RedisDeliveryLog struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisDeliveryLog(client *redis.Client, ttl time.Duration) *RedisDeliveryLog {
	return &RedisDeliveryLog{
		client:    client,
		keyPrefix: "notify:delivered:",
		ttl:       ttl,
	}
}

func (l *RedisDeliveryLog) Delivered(ctx context.Context, intentID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.keyPrefix+intentID).Result()
	if err != nil {
		return false, fmt.Errorf("check delivery of %s: %w", intentID, err)
	}
	return n > 0, nil
}

func (l *RedisDeliveryLog) MarkDelivered(ctx context.Context, intentID, messageID string) error {
	if err := l.client.SetNX(ctx, l.keyPrefix+intentID, messageID, l.ttl).Err(); err != nil {
		return fmt.Errorf("mark delivery of %s: %w", intentID, err)
	}
	return nil
}
