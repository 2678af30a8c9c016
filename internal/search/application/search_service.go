package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
	"github.com/davicafu/postmesh/internal/shared/events"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

// SearchService mantiene la proyección de búsqueda y sirve las consultas.
// Todos los handlers de eventos son idempotentes: reprocesar un evento no cambia el resultado.
type SearchService struct {
	repo         searchDomain.SearchRepository
	reads        *sharedCache.ReadThrough
	ttlSecs      int
	tombstoneTTL time.Duration
	cacheTimeout time.Duration
	now          func() time.Time
	log          *zap.Logger
}

type Options struct {
	SearchTTLSecs int
	TombstoneTTL  time.Duration
	CacheTimeout  time.Duration
}

func NewSearchService(repo searchDomain.SearchRepository, reads *sharedCache.ReadThrough, opts Options, log *zap.Logger) *SearchService {
	return &SearchService{
		repo:         repo,
		reads:        reads,
		ttlSecs:      opts.SearchTTLSecs,
		tombstoneTTL: opts.TombstoneTTL,
		cacheTimeout: opts.CacheTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// WithClock sustituye el reloj (tests de tombstones).
func (s *SearchService) WithClock(now func() time.Time) *SearchService {
	s.now = now
	return s
}

// HandlePostCreated proyecta un post nuevo. Un duplicado o un post ya borrado se ignoran.
func (s *SearchService) HandlePostCreated(ctx context.Context, evt events.PostCreatedEvent) error {
	if evt.PostID == "" {
		return searchDomain.ErrInvalidEvent
	}
	s.invalidate(ctx)

	deleted, err := s.repo.IsTombstoned(ctx, evt.PostID, s.now())
	if err != nil {
		return err
	}
	if deleted {
		s.log.Info("Ignoring post.created for a deleted post", zap.String("post_id", evt.PostID))
		return nil
	}

	createdAt := evt.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	err = s.repo.Insert(ctx, &searchDomain.SearchPost{
		PostID:      evt.PostID,
		UserID:      evt.UserID,
		Title:       evt.Title,
		Description: evt.Description,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   createdAt.UTC(),
	})
	if errors.Is(err, searchDomain.ErrSearchRecordExists) {
		s.log.Info("Duplicate post.created ignored", zap.String("post_id", evt.PostID))
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("Processed post.created", zap.String("post_id", evt.PostID))
	return nil
}

// HandlePostUpdated reemplaza la proyección salvo que el post ya esté borrado.
func (s *SearchService) HandlePostUpdated(ctx context.Context, evt events.PostUpdatedEvent) error {
	if evt.PostID == "" {
		return searchDomain.ErrInvalidEvent
	}
	s.invalidate(ctx)

	deleted, err := s.repo.IsTombstoned(ctx, evt.PostID, s.now())
	if err != nil {
		return err
	}
	if deleted {
		s.log.Info("Ignoring post.updated for a deleted post", zap.String("post_id", evt.PostID))
		return nil
	}

	updatedAt := evt.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	if err := s.repo.Upsert(ctx, &searchDomain.SearchPost{
		PostID:      evt.PostID,
		UserID:      evt.UserID,
		Title:       evt.Title,
		Description: evt.Description,
		CreatedAt:   updatedAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}); err != nil {
		return err
	}

	s.log.Info("Processed post.updated", zap.String("post_id", evt.PostID))
	return nil
}

// HandlePostDeleted borra la proyección y deja un tombstone durante tombstoneTTL.
func (s *SearchService) HandlePostDeleted(ctx context.Context, evt events.PostDeletedEvent) error {
	if evt.PostID == "" {
		return searchDomain.ErrInvalidEvent
	}
	s.invalidate(ctx)

	if err := s.repo.DeleteByPostID(ctx, evt.PostID); err != nil {
		return err
	}
	if err := s.repo.WriteTombstone(ctx, evt.PostID, s.now().Add(s.tombstoneTTL)); err != nil {
		return err
	}

	s.log.Info("Processed post.deleted", zap.String("post_id", evt.PostID))
	return nil
}

// Search devuelve los MaxResults más relevantes, cacheados en search:<query>.
func (s *SearchService) Search(ctx context.Context, query string) ([]*searchDomain.SearchPost, error) {
	q, err := searchDomain.NormalizeQuery(query)
	if err != nil {
		return nil, err
	}

	results, err := sharedCache.Fetch(ctx, s.reads, searchDomain.SearchCacheKey(q), s.ttlSecs, func(ctx context.Context) ([]*searchDomain.SearchPost, error) {
		res, err := s.repo.Search(ctx, q, searchDomain.MaxResults)
		if err != nil {
			return nil, err
		}
		if res == nil {
			res = []*searchDomain.SearchPost{}
		}
		return res, nil
	})
	if err != nil {
		s.log.Error("Search failed", zap.String("query", q), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// La caché de búsqueda entera queda obsoleta con cualquier cambio de la proyección.
func (s *SearchService) invalidate(ctx context.Context) {
	sharedCache.InvalidateOrWarn(ctx, s.reads.Cache(), s.cacheTimeout, s.log, searchDomain.CachePrefix)
}
