package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
)

type InMemoryMediaRepo struct {
	mu     sync.RWMutex
	medias map[uuid.UUID]mediaDomain.Media
}

var _ mediaDomain.MediaRepository = (*InMemoryMediaRepo)(nil)

func NewInMemoryMediaRepo() *InMemoryMediaRepo {
	return &InMemoryMediaRepo{medias: make(map[uuid.UUID]mediaDomain.Media)}
}

func (r *InMemoryMediaRepo) Create(ctx context.Context, m *mediaDomain.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.medias[m.ID] = *m
	return nil
}

func (r *InMemoryMediaRepo) ListByUser(ctx context.Context, userID string) ([]*mediaDomain.Media, error) {
	r.mu.RLock()
	out := make([]*mediaDomain.Media, 0)
	for _, m := range r.medias {
		if m.UserID == userID {
			m := m
			out = append(out, &m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryMediaRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*mediaDomain.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mediaDomain.Media, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.medias[id]; ok {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *InMemoryMediaRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.medias[id]; !ok {
		return mediaDomain.ErrMediaNotFound
	}
	delete(r.medias, id)
	return nil
}
