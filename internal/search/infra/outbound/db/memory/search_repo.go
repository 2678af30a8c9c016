package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
)

// InMemorySearchRepo: proyección en memoria con una relevancia sencilla
// (número de apariciones de los términos en título y descripción).
type InMemorySearchRepo struct {
	mu         sync.RWMutex
	records    map[string]searchDomain.SearchPost
	tombstones map[string]time.Time
}

var _ searchDomain.SearchRepository = (*InMemorySearchRepo)(nil)

func NewInMemorySearchRepo() *InMemorySearchRepo {
	return &InMemorySearchRepo{
		records:    make(map[string]searchDomain.SearchPost),
		tombstones: make(map[string]time.Time),
	}
}

func (r *InMemorySearchRepo) Insert(ctx context.Context, p *searchDomain.SearchPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[p.PostID]; ok {
		return searchDomain.ErrSearchRecordExists
	}
	r.records[p.PostID] = *p
	return nil
}

func (r *InMemorySearchRepo) Upsert(ctx context.Context, p *searchDomain.SearchPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := *p
	if old, ok := r.records[p.PostID]; ok {
		rec.CreatedAt = old.CreatedAt
	}
	r.records[p.PostID] = rec
	return nil
}

func (r *InMemorySearchRepo) DeleteByPostID(ctx context.Context, postID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, postID)
	return nil
}

func (r *InMemorySearchRepo) Search(ctx context.Context, query string, limit int) ([]*searchDomain.SearchPost, error) {
	terms := searchDomain.Terms(query)

	type scored struct {
		rec   searchDomain.SearchPost
		score int
	}

	r.mu.RLock()
	var hits []scored
	for _, rec := range r.records {
		if s := score(rec, terms); s > 0 {
			hits = append(hits, scored{rec: rec, score: s})
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].rec.CreatedAt.After(hits[j].rec.CreatedAt)
	})

	out := make([]*searchDomain.SearchPost, 0, limit)
	for i := 0; i < len(hits) && i < limit; i++ {
		rec := hits[i].rec
		out = append(out, &rec)
	}
	return out, nil
}

func (r *InMemorySearchRepo) WriteTombstone(ctx context.Context, postID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tombstones[postID] = expiresAt
	return nil
}

func (r *InMemorySearchRepo) IsTombstoned(ctx context.Context, postID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.tombstones[postID]
	if !ok {
		return false, nil
	}
	if !now.Before(exp) {
		delete(r.tombstones, postID)
		return false, nil
	}
	return true, nil
}

// Len es para tests.
func (r *InMemorySearchRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func score(rec searchDomain.SearchPost, terms []string) int {
	words := searchDomain.Terms(rec.Title + " " + rec.Description)
	n := 0
	for _, w := range words {
		for _, t := range terms {
			if w == t {
				n++
			}
		}
	}
	return n
}
