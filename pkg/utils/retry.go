package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryFunc is a function that can be retried. It should return an error
// if the operation failed and nil on success.
type RetryFunc func() error

// RetryConfig holds configuration for retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts (including first try)
	InitialDelay time.Duration // Initial delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Exponential backoff multiplier
	Jitter       bool          // Add random jitter to delays
	OnlyMarked   bool          // Retry only errors wrapped with NewRetryableError
}

// DatabaseRetryConfig returns a retry configuration for backend connections.
// Connections often fail transiently while a container is still starting.
//
// Configuration:
//   - Max attempts: 5
//   - Initial delay: 50ms
//   - Max delay: 2s
//   - Multiplier: 2.0
//   - Jitter: enabled
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// ExternalAPIRetryConfig returns a retry configuration for external API calls.
// Only errors the caller marked retryable (rate limits, 5xx) are retried.
//
// Configuration:
//   - Max attempts: 3
//   - Initial delay: 500ms
//   - Max delay: 10s
//   - Multiplier: 2.0
//   - Jitter: enabled
func ExternalAPIRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		OnlyMarked:   true,
	}
}

// Retry executes a function with retry logic and exponential backoff.
// The function will be retried until it succeeds, max attempts is reached,
// or the context is cancelled.
//
// The delay between retries follows exponential backoff:
//
//	delay = initialDelay * multiplier^(attempt-1)
//
// Optional jitter adds random variance (±25%) to prevent thundering herd.
//
// Example:
//
//	err := utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
//	    return db.Ping()
//	})
func Retry(ctx context.Context, config RetryConfig, fn RetryFunc) error {
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Int("max_attempts", config.MaxAttempts).
					Msg("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if config.OnlyMarked && !IsRetryableError(err) {
			return err
		}

		if attempt >= config.MaxAttempts {
			log.Warn().
				Err(err).
				Int("attempts", attempt).
				Msg("Max retry attempts reached")
			break
		}

		delay := calculateDelay(attempt, config)

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", config.MaxAttempts).
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

// calculateDelay calculates the delay before next retry using exponential backoff.
// The formula is: initialDelay * multiplier^(attempt-1), capped at maxDelay.
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		jitterRange := delay * 0.25
		jitter := (rand.Float64() * 2 * jitterRange) - jitterRange
		delay += jitter
	}

	return time.Duration(delay)
}

// RetryableError wraps an error to explicitly mark it as retryable.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error wrapper.
//
// Example:
//
//	if resp.StatusCode == http.StatusTooManyRequests {
//	    return utils.NewRetryableError(err)
//	}
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryableError checks if an error, or anything it wraps, is marked retryable.
func IsRetryableError(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
