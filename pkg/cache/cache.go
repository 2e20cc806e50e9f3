// Package cache provides a small Redis-based caching layer with JSON
// serialization, plus the key builders used for every Redis key the service
// writes.
//
// The cache is optional: it is only wired when Redis is the storage backend.
// Callers treat a nil *Cache as "caching disabled".
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

// Cache stores JSON-encoded values with a TTL.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance wrapping a Redis client.
//
// Example:
//
//	c := cache.NewCache(redisDB.Client())
func NewCache(client *redis.Client) *Cache {
	return &Cache{
		client: client,
	}
}

// Get retrieves a value from cache and unmarshals it into the target.
// Returns ErrCacheMiss if the key doesn't exist.
//
// Example:
//
//	var geo services.GeoResult
//	err := c.Get(ctx, cache.GeoLocationKey(ip), &geo)
//	if errors.Is(err, cache.ErrCacheMiss) {
//	    // look it up
//	}
func (c *Cache) Get(ctx context.Context, key string, target interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		log.Error().Err(err).Str("key", key).Msg("Failed to get from cache")
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to unmarshal cached data")
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}

// Set marshals value to JSON and stores it with the given TTL.
// A zero TTL keeps the key until it is deleted.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal data for cache")
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to set cache")
		return fmt.Errorf("cache set error: %w", err)
	}

	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached data")
	return nil
}

// Delete removes keys from the cache. Missing keys are ignored.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Error().Err(err).Strs("keys", keys).Msg("Failed to delete from cache")
		return fmt.Errorf("%w: %v", ErrCacheInvalidation, err)
	}

	log.Debug().Strs("keys", keys).Msg("Deleted from cache")
	return nil
}
