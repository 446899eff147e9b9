package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis key layout:
//
//	refresh_token:{jti}           -> user id, TTL = refresh token lifetime
//	blacklist:{jti}               -> "1", TTL = remaining access token lifetime
//	session:{user_id}:{id}        -> hash{device_info, ip_address, created_at}
//	ratelimit:{ip}:{endpoint}     -> counter, TTL = window
//	notifications:{user_id}       -> list of JSON envelopes, capped
const (
	refreshTokenPrefix = "refresh_token:"
	blacklistPrefix    = "blacklist:"
	sessionPrefix      = "session:"
	rateLimitPrefix    = "ratelimit:"
	mailboxPrefix      = "notifications:"
)

// ErrTokenNotFound is returned when a refresh token is unknown or expired.
var ErrTokenNotFound = errors.New("refresh token not found or expired")

// RedisDB wraps a pooled go-redis client.
type RedisDB struct {
	client *redis.Client
}

// NewRedisDB connects and pings with the same startup retry policy as
// PostgreSQL.
func NewRedisDB(cfg *config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to ping Redis, retrying...")
			return err
		}
		return nil
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Msg("Successfully connected to Redis")
	return &RedisDB{client: client}, nil
}

// NewRedisDBFromClient wraps an existing client. Tests pass a miniredis
// backed client.
func NewRedisDBFromClient(client *redis.Client) *RedisDB {
	return &RedisDB{client: client}
}

// Close closes the client pool.
func (r *RedisDB) Close() error {
	return r.client.Close()
}

// Client exposes the underlying client for the cache package.
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Ping is used by the readiness check.
func (r *RedisDB) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SetRefreshToken records a refresh token so it can be rotated exactly once.
func (r *RedisDB) SetRefreshToken(ctx context.Context, tokenID, userID string, expiry time.Duration) error {
	if err := r.client.Set(ctx, refreshTokenPrefix+tokenID, userID, expiry).Err(); err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns the owning user id or ErrTokenNotFound.
func (r *RedisDB) GetRefreshToken(ctx context.Context, tokenID string) (string, error) {
	userID, err := r.client.Get(ctx, refreshTokenPrefix+tokenID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	return userID, nil
}

// DeleteRefreshToken is idempotent.
func (r *RedisDB) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	if err := r.client.Del(ctx, refreshTokenPrefix+tokenID).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// BlacklistToken rejects an access token jti until expiry elapses.
func (r *RedisDB) BlacklistToken(ctx context.Context, jti string, expiry time.Duration) error {
	if err := r.client.Set(ctx, blacklistPrefix+jti, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// IsTokenBlacklisted reports whether jti was revoked.
func (r *RedisDB) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

func sessionKey(userID, sessionID string) string {
	return sessionPrefix + userID + ":" + sessionID
}

// SetSession stores one device session. The hash and its TTL are written in
// a single MULTI so a session never exists without an expiry.
func (r *RedisDB) SetSession(ctx context.Context, userID, sessionID, deviceInfo, ipAddress string, expiry time.Duration) error {
	key := sessionKey(userID, sessionID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"device_info": deviceInfo,
			"ip_address":  ipAddress,
			"created_at":  time.Now().Unix(),
		})
		pipe.Expire(ctx, key, expiry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// SessionRecord is a device session as stored in Redis.
type SessionRecord struct {
	DeviceInfo string
	IPAddress  string
	CreatedAt  time.Time
	TTL        time.Duration
}

// GetSession returns ErrNotFound for an unknown or expired session.
func (r *RedisDB) GetSession(ctx context.Context, userID, sessionID string) (*SessionRecord, error) {
	key := sessionKey(userID, sessionID)

	var fields *redis.MapStringStringCmd
	var ttl *redis.DurationCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	data := fields.Val()
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	createdUnix, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid session timestamp: %w", err)
	}

	return &SessionRecord{
		DeviceInfo: data["device_info"],
		IPAddress:  data["ip_address"],
		CreatedAt:  time.Unix(createdUnix, 0),
		TTL:        ttl.Val(),
	}, nil
}

// DeleteSession is idempotent.
func (r *RedisDB) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListUserSessions returns the ids of every live session of a user.
func (r *RedisDB) ListUserSessions(ctx context.Context, userID string) ([]string, error) {
	prefix := sessionPrefix + userID + ":"
	keys, err := r.scan(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sessions := make([]string, 0, len(keys))
	for _, key := range keys {
		if id := strings.TrimPrefix(key, prefix); id != "" && id != key {
			sessions = append(sessions, id)
		}
	}
	return sessions, nil
}

// CountSessions counts live device sessions across all users. It feeds the
// active sessions gauge.
func (r *RedisDB) CountSessions(ctx context.Context) (int, error) {
	keys, err := r.scan(ctx, sessionPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return len(keys), nil
}

func (r *RedisDB) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// IncrementRateLimit bumps the fixed window counter for ip and endpoint and
// returns the new count. The window starts with the first request.
func (r *RedisDB) IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error) {
	key := rateLimitPrefix + ip + ":" + endpoint

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}
	return count, nil
}

// PushNotification appends an encoded event to a user's mailbox, keeping
// only the newest max entries and refreshing the mailbox TTL.
func (r *RedisDB) PushNotification(ctx context.Context, userID string, payload []byte, max int, ttl time.Duration) error {
	key := mailboxPrefix + userID

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, int64(-max), -1)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	return nil
}

// DrainNotifications atomically returns and clears a user's mailbox, oldest
// first.
func (r *RedisDB) DrainNotifications(ctx context.Context, userID string) ([][]byte, error) {
	key := mailboxPrefix + userID

	var items *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain notifications: %w", err)
	}

	out := make([][]byte, 0, len(items.Val()))
	for _, item := range items.Val() {
		out = append(out, []byte(item))
	}
	return out, nil
}
