package cache

import (
	"context"
)

// ResultCache defines the interface for search result caching
// implementations. The generic type T represents the cached value type.
//
// Keys are expected to be normalized by the caller: the cache itself treats
// them as opaque strings.
type ResultCache[T any] interface {
	// Get retrieves a value from the cache.
	// Returns the value, whether it was found, and any error. An expired
	// entry is reported as not found.
	Get(ctx context.Context, key string) (T, bool, error)

	// Set stores a value in the cache for the configured TTL.
	Set(ctx context.Context, key string, value T) error

	// Invalidate removes a value from the cache.
	Invalidate(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
