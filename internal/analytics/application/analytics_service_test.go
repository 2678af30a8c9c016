package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	analyticsDomain "github.com/davicafu/postmesh/internal/analytics/domain"
	"github.com/davicafu/postmesh/internal/analytics/infra/outbound/analytics/memory"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

func newService() (*AnalyticsService, *sharedCache.InMemoryCache) {
	c := sharedCache.NewInMemoryCache(time.Minute, 0)
	rt := sharedCache.NewReadThrough(c, time.Second, false, zap.NewNop())
	return NewAnalyticsService(memory.NewInMemoryActivityRepo(), rt, 300, time.Second, zap.NewNop()), c
}

func msg(key, body string) bus.Message {
	return bus.Message{
		RoutingKey:  key,
		Body:        []byte(body),
		PublishedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Attempt:     1,
	}
}

func TestHandleEvent_CountsOncePerPostAndType(t *testing.T) {
	// Arrange
	svc, _ := newService()
	ctx := context.Background()

	// Act
	require.NoError(t, svc.HandleEvent(ctx, msg("post.created", `{"postId":"p1","userId":"u1"}`)))
	require.NoError(t, svc.HandleEvent(ctx, msg("post.created", `{"postId":"p1","userId":"u1"}`)))
	require.NoError(t, svc.HandleEvent(ctx, msg("post.created", `{"postId":"p2","userId":"u1"}`)))
	require.NoError(t, svc.HandleEvent(ctx, msg("post.deleted", `{"postId":"p1","userId":"u1"}`)))

	// Assert
	s, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.Counts["post.created"])
	assert.Equal(t, uint64(1), s.Counts["post.deleted"])
	assert.Equal(t, uint64(3), s.Total)
}

func TestHandleEvent_InvalidatesCachedSummary(t *testing.T) {
	svc, c := newService()
	ctx := context.Background()
	require.NoError(t, svc.HandleEvent(ctx, msg("post.created", `{"postId":"p1"}`)))

	_, err := svc.Summary(ctx)
	require.NoError(t, err)
	var cached analyticsDomain.Summary
	hit, _ := c.Get(ctx, analyticsDomain.SummaryCacheKey, &cached)
	require.True(t, hit)

	require.NoError(t, svc.HandleEvent(ctx, msg("post.updated", `{"postId":"p1"}`)))

	hit, _ = c.Get(ctx, analyticsDomain.SummaryCacheKey, &cached)
	assert.False(t, hit)
	s, _ := svc.Summary(ctx)
	assert.Equal(t, uint64(2), s.Total)
}

func TestHandleEvent_PoisonPayloads(t *testing.T) {
	svc, _ := newService()

	tests := []struct {
		name string
		body string
	}{
		{"json roto", `{`},
		{"sin postId", `{"userId":"u1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.HandleEvent(context.Background(), msg("post.created", tt.body))
			assert.ErrorIs(t, err, bus.ErrPoison)
		})
	}
}

func TestDailyTrend(t *testing.T) {
	svc, _ := newService()
	svc.now = func() time.Time { return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	require.NoError(t, svc.HandleEvent(ctx, msg("post.created", `{"postId":"p1"}`)))
	require.NoError(t, svc.HandleEvent(ctx, msg("post.deleted", `{"postId":"p1"}`)))

	trend, err := svc.DailyTrend(ctx, 7)

	require.NoError(t, err)
	require.Len(t, trend, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), trend[0].Day)
	assert.Equal(t, uint64(1), trend[0].Created)
	assert.Equal(t, uint64(1), trend[0].Deleted)
}
