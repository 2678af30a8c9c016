package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestInMemoryCache_TTLBoundary(t *testing.T) {
	// Arrange
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewInMemoryCache(time.Minute, 0).WithClock(clock.Now)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "post:1", map[string]string{"title": "Hello"}, 3600))

	var got map[string]string

	// Act + Assert: justo antes de t sigue vivo
	clock.Advance(3600*time.Second - time.Nanosecond)
	hit, err := c.Get(ctx, "post:1", &got)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Hello", got["title"])

	// en t exacto ya no se sirve
	clock.Advance(time.Nanosecond)
	hit, err = c.Get(ctx, "post:1", &got)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestInMemoryCache_DefaultTTLWhenZero(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewInMemoryCache(10*time.Second, 0).WithClock(clock.Now)
	ctx := context.Background()

	_ = c.Set(ctx, "k", 1, 0)
	clock.Advance(9 * time.Second)
	var v int
	hit, _ := c.Get(ctx, "k", &v)
	assert.True(t, hit)

	clock.Advance(time.Second)
	hit, _ = c.Get(ctx, "k", &v)
	assert.False(t, hit)
}

func TestInMemoryCache_DeletePrefix(t *testing.T) {
	c := NewInMemoryCache(time.Minute, 0)
	ctx := context.Background()
	_ = c.Set(ctx, "posts:1:10", []int{1}, 300)
	_ = c.Set(ctx, "posts:2:10", []int{2}, 300)
	_ = c.Set(ctx, "post:abc", 1, 3600)
	_ = c.Set(ctx, "search:hello", 1, 900)

	n, err := c.DeletePrefix(ctx, "posts:")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	var v interface{}
	hit, _ := c.Get(ctx, "post:abc", &v)
	assert.True(t, hit, "post:<id> no pertenece al namespace posts:")
	hit, _ = c.Get(ctx, "search:hello", &v)
	assert.True(t, hit)
}

func TestInMemoryCache_OverwriteReplacesWholesale(t *testing.T) {
	c := NewInMemoryCache(time.Minute, 0)
	ctx := context.Background()
	type snapshot struct {
		A string `json:"a,omitempty"`
		B string `json:"b,omitempty"`
	}

	_ = c.Set(ctx, "k", snapshot{A: "1", B: "1"}, 60)
	_ = c.Set(ctx, "k", snapshot{A: "2"}, 60)

	var got snapshot
	hit, _ := c.Get(ctx, "k", &got)
	assert.True(t, hit)
	assert.Equal(t, snapshot{A: "2"}, got)
}

func TestInMemoryCache_CleanupLoopEvicts(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewInMemoryCache(time.Minute, 5*time.Millisecond).WithClock(clock.Now)
	defer c.Stop()
	_ = c.Set(context.Background(), "k", 1, 1)

	clock.Advance(2 * time.Second)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}
