// AngelaMos | 2026
// cache.go

package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "subscription:"

type Cache interface {
	Get(ctx context.Context, userID string) (*Record, bool, error)
	Set(ctx context.Context, record *Record) error
	Invalidate(ctx context.Context, userID string) error
}

type redisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) Cache {
	return &redisCache{client: client, ttl: ttl}
}

func cacheKey(userID string) string {
	return cacheKeyPrefix + userID
}

func (c *redisCache) Get(
	ctx context.Context,
	userID string,
) (*Record, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read subscription cache: %w", err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("decode subscription cache: %w", err)
	}

	return &record, true, nil
}

func (c *redisCache) Set(ctx context.Context, record *Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode subscription cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(record.UserID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write subscription cache: %w", err)
	}

	return nil
}

func (c *redisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate subscription cache: %w", err)
	}
	return nil
}
