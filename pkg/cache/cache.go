// Package cache is a small Redis read-through cache with JSON serialization.
//
// It backs two things in ScholarHunter: the user lookup cache used on every
// authenticated profile read, and the scholarship listing cache which is
// invalidated by pattern whenever a scholarship is written.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache stores JSON encoded values in Redis.
type Cache struct {
	client *redis.Client
}

// NewCache wraps an already configured Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get decodes the value stored at key into target. It returns ErrCacheMiss
// when the key does not exist.
func (c *Cache) Get(ctx context.Context, key string, target interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		_ = c.client.Del(ctx, key).Err()
		return ErrCacheMiss
	}
	return nil
}

// Set stores value at key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}

	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached data")
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// DeletePattern removes every key matching a glob pattern. It walks the
// keyspace with SCAN so it never blocks Redis the way KEYS would.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	var deleted int

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache delete error: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	log.Debug().Str("pattern", pattern).Int("count", deleted).Msg("Deleted keys by pattern")
	return nil
}

// GetOrLoad implements cache-aside for a typed value. On a miss it calls
// load, stores the result and returns it. A failure to write the cache is
// logged and otherwise ignored since the caller already has fresh data.
//
//	users, err := cache.GetOrLoad(ctx, c, key, ttl, func() ([]models.User, error) {
//	    return db.ListUsers(ctx)
//	})
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var value T
	if c == nil {
		return load()
	}

	err := c.Get(ctx, key, &value)
	if err == nil {
		log.Debug().Str("key", key).Msg("Cache hit")
		return value, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, loading from source")
	}

	value, err = load()
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache loaded data")
	}
	return value, nil
}
