package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	postDomain "github.com/davicafu/postmesh/internal/post/domain"
	"github.com/davicafu/postmesh/internal/post/infra/outbound/db/memory"
	"github.com/davicafu/postmesh/internal/shared/events"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

// journal registra en orden lo que pasa en caché y bus.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string{}, j.entries...)
}

type recordingCache struct {
	*sharedCache.InMemoryCache
	j *journal
}

func (c *recordingCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.j.add("delete:" + k)
	}
	return c.InMemoryCache.Delete(ctx, keys...)
}

func (c *recordingCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c.j.add("delete-prefix:" + prefix)
	return c.InMemoryCache.DeletePrefix(ctx, prefix)
}

type recordingEmitter struct {
	j        *journal
	mu       sync.Mutex
	payloads []interface{}
}

func (e *recordingEmitter) Emit(ctx context.Context, routingKey string, payload interface{}) {
	e.j.add("emit:" + routingKey)
	e.mu.Lock()
	e.payloads = append(e.payloads, payload)
	e.mu.Unlock()
}

type fixture struct {
	service *PostService
	repo    *memory.InMemoryPostRepo
	cache   *recordingCache
	emitter *recordingEmitter
	j       *journal
}

func newFixture() *fixture {
	j := &journal{}
	c := &recordingCache{InMemoryCache: sharedCache.NewInMemoryCache(time.Minute, 0), j: j}
	em := &recordingEmitter{j: j}
	repo := memory.NewInMemoryPostRepo()
	rt := sharedCache.NewReadThrough(c, time.Second, false, zap.NewNop())
	svc := NewPostService(repo, rt, em, CacheTTLs{Item: 3600, List: 300}, time.Second, zap.NewNop())
	return &fixture{service: svc, repo: repo, cache: c, emitter: em, j: j}
}

func TestCreatePost_InvalidatesBeforeEmitting(t *testing.T) {
	// Arrange
	f := newFixture()
	ctx := context.Background()

	// Act
	post, err := f.service.CreatePost(ctx, "u1", "Hello", "World desc", []string{"m1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		"delete-prefix:posts:",
		"delete:" + postDomain.PostCacheKey(post.ID),
		"emit:" + events.PostCreated,
	}, f.j.all())

	evt, ok := f.emitter.payloads[0].(events.PostCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, post.ID.String(), evt.PostID)
	assert.Equal(t, "u1", evt.UserID)
	assert.Equal(t, "Hello", evt.Title)
	assert.Equal(t, "World desc", evt.Description)
}

func TestCreatePost_ValidationErrorHasNoSideEffects(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreatePost(context.Background(), "u1", "Hi", "World desc", nil)

	assert.ErrorIs(t, err, postDomain.ErrInvalidPost)
	assert.Empty(t, f.j.all())
	_, total, _ := f.repo.List(context.Background(), 1, 10)
	assert.Zero(t, total)
}

func TestGetPost_PopulatesItemCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post, _ := f.service.CreatePost(ctx, "u1", "Hello", "World desc", nil)

	got, err := f.service.GetPost(ctx, post.ID)

	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
	var cached postDomain.Post
	hit, _ := f.cache.Get(ctx, postDomain.PostCacheKey(post.ID), &cached)
	assert.True(t, hit)
	assert.Equal(t, "Hello", cached.Title)
}

// Escribir, leer (miss que puebla a 3600s), borrar y volver a leer: la lectura refleja el borrado
// sin depender de ningún evento.
func TestWriteReadDeleteRead_ReflectsDeletion(t *testing.T) {
	// Arrange
	f := newFixture()
	ctx := context.Background()
	post, err := f.service.CreatePost(ctx, "u1", "Hello", "World desc", nil)
	require.NoError(t, err)
	_, err = f.service.GetPost(ctx, post.ID)
	require.NoError(t, err)

	// Act
	require.NoError(t, f.service.DeletePost(ctx, post.ID, "u1"))
	_, err = f.service.GetPost(ctx, post.ID)

	// Assert
	assert.ErrorIs(t, err, postDomain.ErrPostNotFound)
}

func TestListPosts_CachedUntilNextWrite(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _ = f.service.CreatePost(ctx, "u1", "First", "First description", nil)

	page, err := f.service.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalPosts)

	var cached postDomain.PostPage
	hit, _ := f.cache.Get(ctx, postDomain.ListCacheKey(1, 10), &cached)
	assert.True(t, hit)

	// una nueva escritura invalida el namespace posts:
	_, _ = f.service.CreatePost(ctx, "u2", "Second", "Second description", nil)
	page, err = f.service.ListPosts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalPosts)
	assert.Equal(t, "Second", page.Posts[0].Title)
	assert.Equal(t, 1, page.TotalPages)
}

func TestListPosts_NormalizesPagination(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = f.service.CreatePost(ctx, "u1", "Title", "A description", nil)
	}

	page, err := f.service.ListPosts(ctx, 0, 2)

	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Posts, 2)
}

func TestDeletePost_EmitsMediaIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post, _ := f.service.CreatePost(ctx, "u1", "Hello", "World desc", []string{"m1", "m2"})

	err := f.service.DeletePost(ctx, post.ID, "u1")

	require.NoError(t, err)
	entries := f.j.all()
	assert.Equal(t, "emit:"+events.PostDeleted, entries[len(entries)-1])
	assert.Equal(t, "delete:"+postDomain.PostCacheKey(post.ID), entries[len(entries)-2])
	evt := f.emitter.payloads[1].(events.PostDeletedEvent)
	assert.Equal(t, []string{"m1", "m2"}, evt.MediaIDs)
	assert.Equal(t, post.ID.String(), evt.PostID)
}

func TestDeletePost_OtherUserGetsNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post, _ := f.service.CreatePost(ctx, "u1", "Hello", "World desc", nil)

	err := f.service.DeletePost(ctx, post.ID, "intruder")

	assert.ErrorIs(t, err, postDomain.ErrPostNotFound)
	_, err = f.repo.GetByID(ctx, post.ID)
	assert.NoError(t, err)
	assert.Len(t, f.emitter.payloads, 1)
}

func TestUpdatePost_OwnerOnlyAndEmits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post, _ := f.service.CreatePost(ctx, "u1", "Hello", "World desc", nil)

	_, err := f.service.UpdatePost(ctx, post.ID, "u2", "Hacked", "Hacked description")
	assert.ErrorIs(t, err, postDomain.ErrNotOwner)

	updated, err := f.service.UpdatePost(ctx, post.ID, "u1", "Updated", "Updated description")
	require.NoError(t, err)
	assert.Equal(t, "Updated", updated.Title)

	entries := f.j.all()
	assert.Equal(t, "emit:"+events.PostUpdated, entries[len(entries)-1])
	evt := f.emitter.payloads[1].(events.PostUpdatedEvent)
	assert.Equal(t, "Updated", evt.Title)
}

func TestGetPost_UnknownID(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetPost(context.Background(), uuid.New())

	assert.ErrorIs(t, err, postDomain.ErrPostNotFound)
}
