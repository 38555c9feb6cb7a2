package cache

import (
	"context"
	"testing"
	"time"

	"github.com/escolaware/portaria-bridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfig_Memory(t *testing.T) {
	cfg := config.CacheConfig{Type: "memory", MaxEntries: 100}

	cache, err := NewFromConfig[cachedResult](context.Background(), cfg, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	err = cache.Set(context.Background(), "key", cachedResult{Query: "key"})
	require.NoError(t, err)

	value, found, err := cache.Get(context.Background(), "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "key", value.Query)
}

func TestNewFromConfig_UnknownType(t *testing.T) {
	cfg := config.CacheConfig{Type: "carrier-pigeon"}

	_, err := NewFromConfig[cachedResult](context.Background(), cfg, time.Minute)
	assert.ErrorContains(t, err, "unknown cache type")
}

func TestNewFromConfig_RedisRequiresAddress(t *testing.T) {
	cfg := config.CacheConfig{Type: "redis"}

	_, err := NewFromConfig[cachedResult](context.Background(), cfg, time.Minute)
	assert.ErrorContains(t, err, "redis address is required")
}
