package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/search/application"
	"github.com/davicafu/postmesh/internal/search/infra/outbound/db/memory"
	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
	memoryBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus/memory"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

type setup struct {
	bus   *memoryBus.InMemoryEventBus
	repo  *memory.InMemorySearchRepo
	cache *sharedCache.InMemoryCache
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	log := zap.NewNop()
	s := &setup{
		bus:   memoryBus.NewInMemoryEventBus(sharedBus.DefaultDeliveryPolicy(), time.Second, log),
		repo:  memory.NewInMemorySearchRepo(),
		cache: sharedCache.NewInMemoryCache(time.Minute, 0),
	}
	t.Cleanup(func() { _ = s.bus.Close() })

	rt := sharedCache.NewReadThrough(s.cache, time.Second, false, log)
	svc := application.NewSearchService(s.repo, rt, application.Options{
		SearchTTLSecs: 900, TombstoneTTL: time.Hour, CacheTimeout: time.Second,
	}, log)

	subs, err := NewSearchConsumer(svc, log).Subscribe(context.Background(), s.bus)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	return s
}

func TestPostCreatedOverBus_ProjectsRecordAndClearsSearchCache(t *testing.T) {
	// Arrange
	s := newSetup(t)
	ctx := context.Background()
	require.NoError(t, s.cache.Set(ctx, "search:hello", []string{}, 900))

	// Act
	err := s.bus.Publish(ctx, "post.created", []byte(
		`{"postId":"p1","userId":"u1","title":"Hello","description":"World desc","createdAt":"2024-01-01T00:00:00Z"}`))
	require.NoError(t, err)

	// Assert
	assert.Eventually(t, func() bool { return s.repo.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.cache.Len())
}

func TestDuplicateDelivery_YieldsOneRecord(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	body := []byte(`{"postId":"p1","userId":"u1","title":"Hello","description":"World desc"}`)

	require.NoError(t, s.bus.Publish(ctx, "post.created", body))
	require.NoError(t, s.bus.Publish(ctx, "post.created", body))

	assert.Eventually(t, func() bool { return s.repo.Len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, s.repo.Len())
	assert.Empty(t, s.bus.DeadLetters())
}

func TestMalformedEvent_IsDeadLetteredWithoutRetry(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	require.NoError(t, s.bus.Publish(ctx, "post.created", []byte(`{not json`)))
	require.NoError(t, s.bus.Publish(ctx, "post.deleted", []byte(`{"userId":"u1"}`)))

	assert.Eventually(t, func() bool { return len(s.bus.DeadLetters()) == 2 }, time.Second, 5*time.Millisecond)
	for _, m := range s.bus.DeadLetters() {
		assert.Equal(t, 1, m.Attempt)
	}
}
