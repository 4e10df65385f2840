package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

const keyPrefix = "phonebox_cart:"

type MemoryPersister struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{carts: make(map[string][]byte)}
}

func (p *MemoryPersister) Load(_ context.Context, cartID string) ([]domain.CartLine, error) {
	p.mu.RLock()
	data, ok := p.carts[cartID]
	p.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(data)
}

func (p *MemoryPersister) Save(_ context.Context, cartID string, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.carts[cartID] = data
	p.mu.Unlock()
	return nil
}

// Put stores raw bytes for a cart, bypassing encoding.
func (p *MemoryPersister) Put(cartID string, data []byte) {
	p.mu.Lock()
	p.carts[cartID] = data
	p.mu.Unlock()
}

type RedisPersister struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPersister(client *redis.Client, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	data, err := p.client.Get(ctx, keyPrefix+cartID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load cart %s: %w", cartID, err)
	}
	return decode(data)
}

func (p *RedisPersister) Save(ctx context.Context, cartID string, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, keyPrefix+cartID, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", cartID, err)
	}
	return nil
}

func decode(data []byte) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return lines, nil
}
