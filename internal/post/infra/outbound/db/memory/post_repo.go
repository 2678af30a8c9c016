package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	postDomain "github.com/davicafu/postmesh/internal/post/domain"
)

// InMemoryPostRepo implementa PostRepository sobre un mapa. Devuelve copias para que
// nadie mute el estado del store por accidente.
type InMemoryPostRepo struct {
	posts map[uuid.UUID]postDomain.Post
	mu    sync.RWMutex
}

var _ postDomain.PostRepository = (*InMemoryPostRepo)(nil)

func NewInMemoryPostRepo() *InMemoryPostRepo {
	return &InMemoryPostRepo{posts: make(map[uuid.UUID]postDomain.Post)}
}

func clone(p postDomain.Post) *postDomain.Post {
	p.MediaIDs = append([]string{}, p.MediaIDs...)
	return &p
}

func (r *InMemoryPostRepo) Create(ctx context.Context, p *postDomain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[p.ID] = *clone(*p)
	return nil
}

func (r *InMemoryPostRepo) GetByID(ctx context.Context, id uuid.UUID) (*postDomain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, postDomain.ErrPostNotFound
	}
	return clone(p), nil
}

func (r *InMemoryPostRepo) List(ctx context.Context, page, limit int) ([]*postDomain.Post, int64, error) {
	r.mu.RLock()
	all := make([]postDomain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		all = append(all, p)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := (page - 1) * limit
	out := make([]*postDomain.Post, 0, limit)
	for i := start; i < len(all) && i < start+limit; i++ {
		out = append(out, clone(all[i]))
	}
	return out, int64(len(all)), nil
}

func (r *InMemoryPostRepo) Update(ctx context.Context, p *postDomain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; !ok {
		return postDomain.ErrPostNotFound
	}
	r.posts[p.ID] = *clone(*p)
	return nil
}

func (r *InMemoryPostRepo) DeleteOwned(ctx context.Context, id uuid.UUID, userID string) (*postDomain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || !p.OwnedBy(userID) {
		return nil, postDomain.ErrPostNotFound
	}
	delete(r.posts, id)
	return clone(p), nil
}
