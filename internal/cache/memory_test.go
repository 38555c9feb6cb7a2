package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cachedResult is a simple struct used for testing the generic caches
// without depending on the lookup package.
type cachedResult struct {
	Query    string
	Students []string
}

func TestMemoryGet_NotFound(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory[cachedResult](time.Minute, 100)
	require.NoError(t, err)

	value, found, err := cache.Get(ctx, "nonexistent")

	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, cachedResult{}, value)
}

func TestMemorySetAndGet_Success(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory[cachedResult](time.Minute, 100)
	require.NoError(t, err)

	expected := cachedResult{Query: "ana", Students: []string{"Ana Maria Silva"}}

	err = cache.Set(ctx, "ana", expected)
	require.NoError(t, err)

	value, found, err := cache.Get(ctx, "ana")

	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, expected, value)
}

func TestMemoryInvalidate_RemovesEntry(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory[cachedResult](time.Minute, 100)
	require.NoError(t, err)

	err = cache.Set(ctx, "ana", cachedResult{Query: "ana"})
	require.NoError(t, err)

	err = cache.Invalidate(ctx, "ana")
	require.NoError(t, err)

	_, found, err := cache.Get(ctx, "ana")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	// Use very short TTL for testing
	cache, err := NewMemory[cachedResult](100*time.Millisecond, 100)
	require.NoError(t, err)

	err = cache.Set(ctx, "ana", cachedResult{Query: "ana"})
	require.NoError(t, err)

	// Verify entry is present immediately
	_, found, err := cache.Get(ctx, "ana")
	assert.NoError(t, err)
	assert.True(t, found)

	// Wait for TTL to expire
	time.Sleep(150 * time.Millisecond)

	// Verify entry is treated as a miss
	_, found, err = cache.Get(ctx, "ana")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryOverwrite(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory[cachedResult](time.Minute, 100)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "ana", cachedResult{Query: "first"}))
	require.NoError(t, cache.Set(ctx, "ana", cachedResult{Query: "second"}))

	value, found, err := cache.Get(ctx, "ana")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", value.Query)
}
