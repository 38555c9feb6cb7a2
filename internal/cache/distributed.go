package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// storageKeyPrefix namespaces result entries within a possibly shared Redis
// database.
const storageKeyPrefix = "portaria:result:"

// Distributed implements ResultCache backed by Redis. Values are stored as
// JSON with a per-key TTL, so expiry is enforced server-side and multiple
// instances can share one cache.
type Distributed[T any] struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDistributed creates a Redis-backed cache. The ttl parameter specifies
// how long entries remain valid.
func NewDistributed[T any](client *redis.Client, ttl time.Duration) *Distributed[T] {
	return &Distributed[T]{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a value from the cache.
// Returns the value, whether it was found, and any error.
func (d *Distributed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	payload, err := d.client.Get(ctx, storageKeyPrefix+key).Bytes()
	if err != nil {
		// key not found is not an error in our semantics
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to get cached value: %w", err)
	}

	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, false, fmt.Errorf("failed to decode cached value: %w", err)
	}

	return value, true, nil
}

// Set stores a value in the cache.
func (d *Distributed[T]) Set(ctx context.Context, key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for caching: %w", err)
	}

	if err := d.client.Set(ctx, storageKeyPrefix+key, payload, d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached value: %w", err)
	}

	return nil
}

// Invalidate removes a value from the cache.
func (d *Distributed[T]) Invalidate(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, storageKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached value: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (d *Distributed[T]) Close() error {
	return d.client.Close()
}
