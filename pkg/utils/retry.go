package utils

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig holds configuration for retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts (including first try)
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound for any single delay
	Multiplier   float64       // Exponential backoff multiplier
	Jitter       bool          // Add up to ±25% random variance to delays
}

// DatabaseRetryConfig returns the policy used while waiting for PostgreSQL
// and Redis to accept connections at startup.
//
// Configuration:
//   - Max attempts: 5
//   - Initial delay: 100ms
//   - Max delay: 3s
//   - Multiplier: 2.0
//   - Jitter: enabled
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry executes fn with exponential backoff until it succeeds, the
// attempts are exhausted or ctx is cancelled.
//
// Parameters:
//   - ctx: cancels the wait between attempts (fn itself is not interrupted)
//   - config: backoff policy, see DatabaseRetryConfig
//   - fn: the operation; a nil error stops the loop
//
// The delay before attempt n+1 is:
//
//	delay = initialDelay * multiplier^(n-1), capped at maxDelay
//
// Returns nil on success, a "retry cancelled" error wrapping ctx.Err(), or a
// "max retries exceeded" error wrapping the last failure.
//
// Example:
//
//	err := utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
//	    return db.PingContext(ctx)
//	})
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}

		delay := backoffDelay(attempt, config)
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Operation failed, retrying after delay")

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retries exceeded (%d attempts): %w", config.MaxAttempts, lastErr)
}

// backoffDelay returns the wait before the attempt after the given one.
func backoffDelay(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	if config.Jitter {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}
