package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/escolaware/portaria-bridge/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewFromConfig creates a cache implementation based on the provided
// configuration. The cache type must be either "memory" or "redis"; any
// other value returns an error. The returned cache is wrapped with metrics
// instrumentation.
func NewFromConfig[T any](
	ctx context.Context,
	cacheConfig config.CacheConfig,
	ttl time.Duration,
) (ResultCache[T], error) {
	switch cacheConfig.Type {
	case "redis":
		log.Info().
			Str("cache_type", "redis").
			Str("address", cacheConfig.Redis.Address).
			Msg("initializing distributed result cache")

		if cacheConfig.Redis.Address == "" {
			return nil, fmt.Errorf("redis address is required when cache type is redis")
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cacheConfig.Redis.Address,
			Username: cacheConfig.Redis.Username,
			Password: cacheConfig.Redis.Password,
			DB:       cacheConfig.Redis.DB,
		})

		// connection problems surface per-operation; a failed ping at
		// startup is worth a warning but not a refusal to start
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable at startup")
		}

		return NewInstrumented[T](NewDistributed[T](client, ttl), "redis"), nil

	case "memory":
		log.Info().
			Str("cache_type", "memory").
			Dur("ttl", ttl).
			Int("max_entries", cacheConfig.MaxEntries).
			Msg("initializing in-memory result cache")

		memory, err := NewMemory[T](ttl, cacheConfig.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("memory cache configuration failed: %w", err)
		}

		return NewInstrumented[T](memory, "memory"), nil

	default:
		return nil, fmt.Errorf("unknown cache type: %q", cacheConfig.Type)
	}
}
