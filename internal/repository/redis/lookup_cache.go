package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront-validation/internal/domain"
)

const lookupKeyPrefix = "validation:lookup:"

// LookupCache implements repository.LookupCache using Redis.
type LookupCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLookupCache creates a lookup cache whose entries expire after ttl.
func NewLookupCache(client *redis.Client, ttl time.Duration) *LookupCache {
	return &LookupCache{client: client, ttl: ttl}
}

func (c *LookupCache) Get(ctx context.Context, key string) ([]domain.Suggestion, bool, error) {
	data, err := c.client.Get(ctx, lookupKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get lookup: %w", err)
	}

	var items []domain.Suggestion
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("unmarshal lookup: %w", err)
	}
	return items, true, nil
}

func (c *LookupCache) Set(ctx context.Context, key string, items []domain.Suggestion) error {
	if items == nil {
		items = []domain.Suggestion{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal lookup: %w", err)
	}

	if err := c.client.Set(ctx, lookupKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set lookup: %w", err)
	}
	return nil
}
