package cache

import (
	"context"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UserReader is the subset of the user repository the cache reads through.
type UserReader interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// UserCache caches users by ID. The password hash is never serialized, so
// cached users must not be used for credential checks.
type UserCache struct {
	cache *Cache
	db    UserReader
	ttl   time.Duration
}

// NewUserCache returns a read-through cache over db. A nil cache disables
// caching and every call goes straight to db.
func NewUserCache(cache *Cache, db UserReader, ttl time.Duration) *UserCache {
	return &UserCache{cache: cache, db: db, ttl: ttl}
}

// GetUserByID returns the cached user or loads it from the database.
func (uc *UserCache) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return GetOrLoad(ctx, uc.cache, UserKey(userID), uc.ttl, func() (*models.User, error) {
		return uc.db.GetUserByID(ctx, userID)
	})
}

// InvalidateUser drops the cached copy so the next read is fresh.
func (uc *UserCache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Delete(ctx, UserKey(userID)); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to invalidate user cache")
	}
}
