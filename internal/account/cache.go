package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "account:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached view, or nil when there is none.
func (c *RedisCache) Get(ctx context.Context, customerID string) (*View, error) {
	data, err := c.client.Get(ctx, keyPrefix+customerID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account view %s: %w", customerID, err)
	}

	var view View
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("decode account view %s: %w", customerID, err)
	}
	return &view, nil
}

func (c *RedisCache) Set(ctx context.Context, customerID string, view *View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+customerID, data, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, customerID string) error {
	return c.client.Del(ctx, keyPrefix+customerID).Err()
}

// NopCache never stores anything. It stands in when no Redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*View, error) { return nil, nil }
func (NopCache) Set(context.Context, string, *View) error   { return nil }
func (NopCache) Invalidate(context.Context, string) error   { return nil }
