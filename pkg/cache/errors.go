package cache

import "errors"

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	// This is expected behavior when a key hasn't been cached yet or has
	// expired, not a failure.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheInvalidation indicates a delete against Redis failed.
	ErrCacheInvalidation = errors.New("cache invalidation failed")
)
