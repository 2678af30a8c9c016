package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
	"github.com/davicafu/postmesh/internal/media/infra/outbound/blob/filesystem"
	"github.com/davicafu/postmesh/internal/media/infra/outbound/db/memory"
	"github.com/davicafu/postmesh/internal/shared/events"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

// flakyBlobs envuelve el adaptador de disco y falla el borrado de las claves marcadas.
type flakyBlobs struct {
	*filesystem.FSBlobStorage
	mu      sync.Mutex
	failDel map[string]bool
	deleted []string
}

func (b *flakyBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDel[key] {
		return errors.New("blob backend unavailable")
	}
	b.deleted = append(b.deleted, key)
	return b.FSBlobStorage.Delete(ctx, key)
}

type fixture struct {
	service *MediaService
	repo    *memory.InMemoryMediaRepo
	blobs   *flakyBlobs
	cache   *sharedCache.InMemoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs, err := filesystem.NewFSBlobStorage(t.TempDir(), "http://localhost:3003/files")
	require.NoError(t, err)

	f := &fixture{
		repo:  memory.NewInMemoryMediaRepo(),
		blobs: &flakyBlobs{FSBlobStorage: fs, failDel: map[string]bool{}},
		cache: sharedCache.NewInMemoryCache(time.Minute, 0),
	}
	rt := sharedCache.NewReadThrough(f.cache, time.Second, false, zap.NewNop())
	f.service = NewMediaService(f.repo, f.blobs, rt, 300, time.Second, zap.NewNop())
	return f
}

func (f *fixture) upload(t *testing.T, userID string) *mediaDomain.Media {
	t.Helper()
	m, err := f.service.Upload(context.Background(), userID, "photo.png", "image/png", 4, strings.NewReader("data"))
	require.NoError(t, err)
	return m
}

func TestUpload_StoresBlobAndRecord(t *testing.T) {
	f := newFixture(t)

	m := f.upload(t, "u1")

	assert.Equal(t, "http://localhost:3003/files/"+m.ID.String(), m.URL)
	list, err := f.repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpload_RejectsEmptyAndOversized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Upload(ctx, "u1", "a", "text/plain", 0, bytes.NewReader(nil))
	assert.ErrorIs(t, err, mediaDomain.ErrNoFile)

	_, err = f.service.Upload(ctx, "u1", "a", "text/plain", mediaDomain.MaxUploadSize+1, bytes.NewReader(nil))
	assert.ErrorIs(t, err, mediaDomain.ErrFileTooLarge)
}

func TestListMedia_CachedPerUserAndInvalidatedOnUpload(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "u1")

	// Act
	first, err := f.service.ListMedia(ctx, "u1")
	require.NoError(t, err)
	var cached []*mediaDomain.Media
	hit, _ := f.cache.Get(ctx, "medias:u1", &cached)

	f.upload(t, "u1")
	second, err := f.service.ListMedia(ctx, "u1")

	// Assert
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
}

func TestHandlePostDeleted_DeletesOwnedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m1 := f.upload(t, "u1")
	m2 := f.upload(t, "u1")
	other := f.upload(t, "u2")

	err := f.service.HandlePostDeleted(ctx, events.PostDeletedEvent{
		PostID:   "p1",
		UserID:   "u1",
		MediaIDs: []string{m1.ID.String(), m2.ID.String(), other.ID.String(), "not-a-uuid", uuid.NewString()},
	})

	require.NoError(t, err)
	left, _ := f.repo.FindByIDs(ctx, []uuid.UUID{m1.ID, m2.ID, other.ID})
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].ID)
}

func TestHandlePostDeleted_OneFailureDoesNotStopTheRest(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ctx := context.Background()
	m1 := f.upload(t, "u1")
	m2 := f.upload(t, "u1")
	m3 := f.upload(t, "u1")
	f.blobs.failDel[m2.StorageKey] = true
	evt := events.PostDeletedEvent{
		PostID:   "p1",
		UserID:   "u1",
		MediaIDs: []string{m1.ID.String(), m2.ID.String(), m3.ID.String()},
	}

	// Act
	err := f.service.HandlePostDeleted(ctx, evt)

	// Assert: m1 y m3 borrados, m2 sigue y el error lo nombra
	require.Error(t, err)
	assert.Contains(t, err.Error(), m2.ID.String())
	left, _ := f.repo.FindByIDs(ctx, []uuid.UUID{m1.ID, m2.ID, m3.ID})
	require.Len(t, left, 1)
	assert.Equal(t, m2.ID, left[0].ID)

	// Reentrega tras recuperarse el backend: sólo queda m2 por borrar.
	f.blobs.failDel = map[string]bool{}
	require.NoError(t, f.service.HandlePostDeleted(ctx, evt))
	left, _ = f.repo.FindByIDs(ctx, []uuid.UUID{m2.ID})
	assert.Empty(t, left)
}

func TestHandlePostDeleted_NoMediaIsNoop(t *testing.T) {
	f := newFixture(t)

	err := f.service.HandlePostDeleted(context.Background(), events.PostDeletedEvent{PostID: "p1", UserID: "u1", MediaIDs: []string{}})

	assert.NoError(t, err)
	assert.Empty(t, f.blobs.deleted)
}
