package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	postDomain "github.com/davicafu/postmesh/internal/post/domain"
	"github.com/davicafu/postmesh/internal/shared/events"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
	sharedUtils "github.com/davicafu/postmesh/internal/shared/infra/utils"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// EventEmitter es el productor best-effort (bus.Emitter).
type EventEmitter interface {
	Emit(ctx context.Context, routingKey string, payload interface{})
}

type CacheTTLs struct {
	Item int // segundos
	List int
}

// PostService es la fuente de verdad de los posts.
// Toda escritura sigue el mismo orden: commit en el store, invalidar caché propia, emitir evento.
type PostService struct {
	repo         postDomain.PostRepository
	reads        *sharedCache.ReadThrough
	emitter      EventEmitter
	ttl          CacheTTLs
	cacheTimeout time.Duration
	log          *zap.Logger
}

func NewPostService(repo postDomain.PostRepository, reads *sharedCache.ReadThrough, emitter EventEmitter, ttl CacheTTLs, cacheTimeout time.Duration, log *zap.Logger) *PostService {
	return &PostService{
		repo:         repo,
		reads:        reads,
		emitter:      emitter,
		ttl:          ttl,
		cacheTimeout: cacheTimeout,
		log:          log,
	}
}

// CreatePost valida, persiste, invalida listados y publica post.created.
func (s *PostService) CreatePost(ctx context.Context, userID, title, description string, mediaIDs []string) (*postDomain.Post, error) {
	post, err := postDomain.NewPost(userID, title, description, mediaIDs)
	if err != nil {
		s.log.Warn("Validation error creating post", zap.Error(err))
		return nil, err
	}

	if err := s.repo.Create(ctx, post); err != nil {
		s.log.Error("Failed to create post", zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, post.ID)
	s.emitter.Emit(ctx, events.PostCreated, events.PostCreatedEvent{
		PostID:      post.ID.String(),
		UserID:      post.UserID,
		Title:       post.Title,
		Description: post.Description,
		CreatedAt:   post.CreatedAt,
	})

	s.log.Info("Post created", zap.String("post_id", post.ID.String()), zap.String("user_id", userID))
	return post, nil
}

// GetPost usa read-through sobre post:<id>.
func (s *PostService) GetPost(ctx context.Context, id uuid.UUID) (*postDomain.Post, error) {
	post, err := sharedCache.Fetch(ctx, s.reads, postDomain.PostCacheKey(id), s.ttl.Item, func(ctx context.Context) (*postDomain.Post, error) {
		var p *postDomain.Post
		err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
			var errRetry error
			p, errRetry = s.repo.GetByID(ctx, id)
			if errors.Is(errRetry, postDomain.ErrPostNotFound) {
				return sharedUtils.Permanent(errRetry)
			}
			return errRetry
		})
		return p, err
	})
	if err != nil {
		if errors.Is(err, postDomain.ErrPostNotFound) {
			s.log.Warn("Post not found", zap.String("post_id", id.String()))
		} else {
			s.log.Error("Failed to fetch post", zap.String("post_id", id.String()), zap.Error(err))
		}
		return nil, err
	}
	return post, nil
}

// ListPosts devuelve una página por recencia, cacheada en posts:<page>:<limit>.
func (s *PostService) ListPosts(ctx context.Context, page, limit int) (*postDomain.PostPage, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	result, err := sharedCache.Fetch(ctx, s.reads, postDomain.ListCacheKey(page, limit), s.ttl.List, func(ctx context.Context) (*postDomain.PostPage, error) {
		posts, total, err := s.repo.List(ctx, page, limit)
		if err != nil {
			return nil, err
		}
		totalPages := int((total + int64(limit) - 1) / int64(limit))
		return &postDomain.PostPage{
			Posts:       posts,
			CurrentPage: page,
			Limit:       limit,
			TotalPages:  totalPages,
			TotalPosts:  total,
		}, nil
	})
	if err != nil {
		s.log.Error("Failed to list posts", zap.Int("page", page), zap.Int("limit", limit), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// UpdatePost sólo lo puede hacer el autor.
func (s *PostService) UpdatePost(ctx context.Context, id uuid.UUID, userID, title, description string) (*postDomain.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.OwnedBy(userID) {
		return nil, postDomain.ErrNotOwner
	}
	if err := post.Update(title, description); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, post); err != nil {
		s.log.Error("Failed to update post", zap.String("post_id", id.String()), zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, post.ID)
	s.emitter.Emit(ctx, events.PostUpdated, events.PostUpdatedEvent{
		PostID:      post.ID.String(),
		UserID:      post.UserID,
		Title:       post.Title,
		Description: post.Description,
		UpdatedAt:   post.UpdatedAt,
	})
	return post, nil
}

// DeletePost borra si el post existe y es del usuario; si no, ErrPostNotFound.
// La invalidación va antes de publicar: un consumidor rápido que lea de vuelta no ve caché vieja.
func (s *PostService) DeletePost(ctx context.Context, id uuid.UUID, userID string) error {
	post, err := s.repo.DeleteOwned(ctx, id, userID)
	if err != nil {
		if !errors.Is(err, postDomain.ErrPostNotFound) {
			s.log.Error("Failed to delete post", zap.String("post_id", id.String()), zap.Error(err))
		}
		return err
	}

	s.invalidate(ctx, post.ID)
	mediaIDs := post.MediaIDs
	if mediaIDs == nil {
		mediaIDs = []string{}
	}
	s.emitter.Emit(ctx, events.PostDeleted, events.PostDeletedEvent{
		PostID:   post.ID.String(),
		UserID:   userID,
		MediaIDs: mediaIDs,
	})

	s.log.Info("Post deleted", zap.String("post_id", id.String()))
	return nil
}

func (s *PostService) invalidate(ctx context.Context, id uuid.UUID) {
	sharedCache.InvalidateOrWarn(ctx, s.reads.Cache(), s.cacheTimeout, s.log, postDomain.ListCachePrefix, postDomain.PostCacheKey(id))
}
