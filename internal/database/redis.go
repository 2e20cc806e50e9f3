package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/cache"
	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisDB wraps a Redis client. It stores the storefront records as plain
// string values and also provides:
//   - Rate limiting per IP address and endpoint
//   - The underlying client for the JSON cache (geo-IP lookups)
//
// Record keys carry the storage namespace; see pkg/cache/keys.go.
type RedisDB struct {
	client *redis.Client // Underlying Redis client with connection pooling
}

// NewRedisDB creates a new Redis connection with automatic retry.
//
// Retry configuration:
//   - Max attempts: 5
//   - Initial delay: 100ms
//   - Max delay: 3 seconds
//   - Total timeout: 30 seconds
//
// Example:
//
//	redisDB, err := database.NewRedisDB(&cfg.Redis)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Redis connection failed")
//	}
//	defer redisDB.Close()
func NewRedisDB(cfg *config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.DatabaseRetryConfig()
	retryConfig.MaxAttempts = 5
	retryConfig.InitialDelay = 100 * time.Millisecond
	retryConfig.MaxDelay = 3 * time.Second

	var lastErr error
	err := utils.Retry(ctx, retryConfig, func() error {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			lastErr = err
			log.Warn().Err(err).Msg("Failed to ping Redis, retrying...")
			return err
		}
		return nil
	})

	if err != nil {
		client.Close()
		if lastErr != nil {
			return nil, fmt.Errorf("failed to connect to Redis after retries: %w", lastErr)
		}
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Msg("Successfully connected to Redis")

	return &RedisDB{client: client}, nil
}

// Close closes the Redis connection and releases all resources.
func (r *RedisDB) Close() error {
	return r.client.Close()
}

// Client returns the underlying Redis client, used to build the JSON cache.
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is alive and responsive.
// Used by health check endpoints to verify Redis availability.
func (r *RedisDB) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Name identifies the backend in health responses and metrics.
func (r *RedisDB) Name() string {
	return "redis"
}

// Get returns the raw value under key, or ErrNotFound when it is absent.
func (r *RedisDB) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set overwrites the value under key. Records never expire.
func (r *RedisDB) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// IncrementRateLimit increments the rate limit counter for an IP and endpoint.
// Implements a fixed window rate limiting algorithm.
//
// Key pattern: "ratelimit:{ip}:{endpoint}"
//
// Behavior:
//   - First request: Sets counter to 1 and starts expiry timer
//   - Subsequent requests: Increments counter
//   - After window expires: Counter resets automatically
//
// Returns the current count (including this request).
func (r *RedisDB) IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error) {
	key := cache.RateLimitKey(ip, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window).Err()
		if err != nil {
			return 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count, nil
}
