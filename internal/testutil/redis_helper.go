package testutil

import (
	"testing"

	"github.com/Folexy13/scholarhunter-sub001/internal/database"
	"github.com/Folexy13/scholarhunter-sub001/pkg/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// SetupMiniRedis starts a miniredis instance that is closed with the test
func SetupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// NewTestRedisClient creates a Redis client connected to miniredis
func NewTestRedisClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// NewTestRedisDB creates a RedisDB backed by miniredis
func NewTestRedisDB(t *testing.T, mr *miniredis.Miniredis) *database.RedisDB {
	t.Helper()
	return database.NewRedisDBFromClient(NewTestRedisClient(t, mr))
}

// NewTestCache creates a cache backed by miniredis
func NewTestCache(t *testing.T, mr *miniredis.Miniredis) *cache.Cache {
	t.Helper()
	return cache.NewCache(NewTestRedisClient(t, mr))
}
