package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func TestRedisCache_SetGetAndExpiry(t *testing.T) {
	// Arrange
	c, mr := newMiniredisCache(t)
	ctx := context.Background()

	// Act
	require.NoError(t, c.Set(ctx, "search:hello", []string{"p1"}, 900))

	// Assert
	var got []string
	hit, err := c.Get(ctx, "search:hello", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"p1"}, got)
	assert.Equal(t, 900*time.Second, mr.TTL("search:hello"))

	mr.FastForward(900 * time.Second)
	hit, err = c.Get(ctx, "search:hello", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_MissIsNotAnError(t *testing.T) {
	c, _ := newMiniredisCache(t)

	var got string
	hit, err := c.Get(context.Background(), "post:missing", &got)

	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_DeletePrefixScansAllPages(t *testing.T) {
	c, mr := newMiniredisCache(t)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("posts:%d:10", i), i, 300))
	}
	require.NoError(t, c.Set(ctx, "post:keep", 1, 3600))

	n, err := c.DeletePrefix(ctx, "posts:")

	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, []string{"post:keep"}, mr.Keys())
}

func TestRedisCache_DeleteManyKeys(t *testing.T) {
	c, mr := newMiniredisCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "a", 1, 60)
	_ = c.Set(ctx, "b", 1, 60)

	require.NoError(t, c.Delete(ctx, "a", "b", "missing"))
	require.NoError(t, c.Delete(ctx))

	assert.Empty(t, mr.Keys())
}

func TestRedisCache_UnavailableReturnsError(t *testing.T) {
	c, mr := newMiniredisCache(t)
	mr.Close()

	var got string
	_, err := c.Get(context.Background(), "post:1", &got)

	assert.Error(t, err)
}

func TestRedisCache_NonPositiveTTLUsesDefault(t *testing.T) {
	c, mr := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "posts:1:10", []string{"p1"}, 0))
	require.NoError(t, c.Set(ctx, "posts:2:10", []string{"p2"}, -5))

	assert.Equal(t, time.Minute, mr.TTL("posts:1:10"))
	assert.Equal(t, time.Minute, mr.TTL("posts:2:10"))
}

func TestNewRedisCache_ZeroDefaultStillExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisCache(client, 0)

	require.NoError(t, c.Set(context.Background(), "post:1", "x", 0))

	assert.Equal(t, fallbackTTL, mr.TTL("post:1"))
}
