package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/rs/zerolog/log"
)

// RateCounter increments a fixed window counter and returns the new count.
// *database.RedisDB implements it.
type RateCounter interface {
	IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error)
}

// RateLimiter implements distributed rate limiting using Redis.
// Protects endpoints from abuse by limiting the number of requests
// per IP address within a time window.
//
// Redis key pattern: "ratelimit:{ip}:{endpoint}" with TTL equal to window
type RateLimiter struct {
	counter        RateCounter
	requestsPerMin int
	window         time.Duration
}

// NewRateLimiter creates a new rate limiter.
//
//	limiter := middleware.NewRateLimiter(redisDB, 60, time.Minute)
//	r.With(limiter.Limit("login")).Post("/api/v1/auth/login", authHandler.Login)
func NewRateLimiter(counter RateCounter, requestsPerMin int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter:        counter,
		requestsPerMin: requestsPerMin,
		window:         window,
	}
}

// Limit creates middleware that applies rate limiting to an endpoint. Each
// endpoint name has an independent counter per client IP.
//
// Headers:
//   - X-RateLimit-Limit: Maximum requests allowed per window
//   - X-RateLimit-Remaining: Requests remaining in current window
//   - Retry-After: Seconds until rate limit resets (on 429 only)
//
// Redis errors let the request through; they are logged.
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ExtractClientIP(r)

			count, err := rl.counter.IncrementRateLimit(r.Context(), ip, endpoint, rl.window)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("Failed to check rate limit")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))

			if count > int64(rl.requestsPerMin) {
				log.Warn().
					Str("ip", ip).
					Str("endpoint", endpoint).
					Int64("count", count).
					Msg("Rate limit exceeded")

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				utils.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.requestsPerMin-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}
