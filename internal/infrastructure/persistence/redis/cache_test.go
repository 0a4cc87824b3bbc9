package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache, err := NewCache(context.Background(), Config{Addr: mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestCache_SetGet(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"n": 3}, time.Minute))

	var got map[string]int
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, 3, got["n"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestCache_Guards(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, cache.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Set(ctx, "k", 1, 0), ErrCacheInvalidTTL)
	assert.ErrorIs(t, cache.Set(ctx, "k", make(chan int), time.Minute), ErrCacheEncoding)
	assert.ErrorIs(t, cache.Get(ctx, "", new(int)), ErrCacheKeyEmpty)

	require.NoError(t, mr.Set("raw", "not json"))
	assert.ErrorIs(t, cache.Get(ctx, "raw", new(int)), ErrCacheEncoding)

	assert.NoError(t, cache.Delete(ctx))
	assert.NoError(t, cache.Delete(ctx, "raw", "missing"))
	assert.False(t, mr.Exists("raw"))
}

func TestNewCache_BadURL(t *testing.T) {
	_, err := NewCache(context.Background(), Config{URL: "http://nope"})
	assert.Error(t, err)
}

func TestNewCache_Unreachable(t *testing.T) {
	_, err := NewCache(context.Background(), Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	assert.ErrorIs(t, err, ErrCacheConnection)
}
