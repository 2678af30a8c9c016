package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
	"github.com/davicafu/postmesh/internal/shared/events"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

// MediaService es dueño de los ficheros de usuario y limpia los de un post cuando éste se borra.
type MediaService struct {
	repo         mediaDomain.MediaRepository
	blobs        mediaDomain.BlobStorage
	reads        *sharedCache.ReadThrough
	listTTL      int
	cacheTimeout time.Duration
	log          *zap.Logger
}

func NewMediaService(repo mediaDomain.MediaRepository, blobs mediaDomain.BlobStorage, reads *sharedCache.ReadThrough, listTTL int, cacheTimeout time.Duration, log *zap.Logger) *MediaService {
	return &MediaService{
		repo:         repo,
		blobs:        blobs,
		reads:        reads,
		listTTL:      listTTL,
		cacheTimeout: cacheTimeout,
		log:          log,
	}
}

// Upload sube el binario y después guarda el registro. Si el registro falla se intenta borrar el binario.
func (s *MediaService) Upload(ctx context.Context, userID, originalName, mimeType string, size int64, content io.Reader) (*mediaDomain.Media, error) {
	media, err := mediaDomain.NewMedia(userID, originalName, mimeType, size)
	if err != nil {
		return nil, err
	}
	s.log.Info("Uploading media",
		zap.String("name", originalName),
		zap.String("mime_type", mimeType),
		zap.Int64("size", size))

	url, err := s.blobs.Put(ctx, media.StorageKey, mimeType, io.LimitReader(content, mediaDomain.MaxUploadSize))
	if err != nil {
		s.log.Error("Blob upload failed", zap.String("media_id", media.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("store blob: %w", err)
	}
	media.URL = url

	if err := s.repo.Create(ctx, media); err != nil {
		s.log.Error("Failed to save media record", zap.String("media_id", media.ID.String()), zap.Error(err))
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), media.StorageKey); delErr != nil {
			s.log.Warn("Orphan blob left behind", zap.String("storage_key", media.StorageKey), zap.Error(delErr))
		}
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info("Media uploaded", zap.String("media_id", media.ID.String()), zap.String("user_id", userID))
	return media, nil
}

// ListMedia devuelve los ficheros del usuario, cacheados en medias:<userId>.
func (s *MediaService) ListMedia(ctx context.Context, userID string) ([]*mediaDomain.Media, error) {
	medias, err := sharedCache.Fetch(ctx, s.reads, mediaDomain.UserCacheKey(userID), s.listTTL, func(ctx context.Context) ([]*mediaDomain.Media, error) {
		list, err := s.repo.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []*mediaDomain.Media{}
		}
		return list, nil
	})
	if err != nil {
		s.log.Error("Failed to list media", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return medias, nil
}

// HandlePostDeleted borra los ficheros del post que pertenecen a su autor: primero el binario, luego el registro.
// Un fallo en un fichero no para los demás; los errores se devuelven juntos para que el bus aplique su política.
// Reprocesar el evento es seguro porque lo ya borrado no vuelve a aparecer en FindByIDs.
func (s *MediaService) HandlePostDeleted(ctx context.Context, evt events.PostDeletedEvent) error {
	s.invalidate(ctx)

	ids, invalid := mediaDomain.ParseIDs(evt.MediaIDs)
	for _, raw := range invalid {
		s.log.Warn("Ignoring invalid media id", zap.String("post_id", evt.PostID), zap.String("media_id", raw))
	}
	if len(ids) == 0 {
		return nil
	}

	medias, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	var errs []error
	deleted := 0
	for _, m := range medias {
		if !m.OwnedBy(evt.UserID) {
			s.log.Warn("Media not owned by post author, skipping",
				zap.String("post_id", evt.PostID),
				zap.String("media_id", m.ID.String()))
			continue
		}
		if err := s.deleteOne(ctx, m); err != nil {
			s.log.Error("Failed to delete media",
				zap.String("post_id", evt.PostID),
				zap.String("media_id", m.ID.String()),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		deleted++
		s.log.Info("Deleted media associated with post", zap.String("post_id", evt.PostID), zap.String("media_id", m.ID.String()))
	}

	s.log.Info("Processed deletion of media of post",
		zap.String("post_id", evt.PostID),
		zap.Int("deleted", deleted),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (s *MediaService) deleteOne(ctx context.Context, m *mediaDomain.Media) error {
	if err := s.blobs.Delete(ctx, m.StorageKey); err != nil {
		return fmt.Errorf("media %s: delete blob: %w", m.ID, err)
	}
	if err := s.repo.Delete(ctx, m.ID); err != nil && !errors.Is(err, mediaDomain.ErrMediaNotFound) {
		return fmt.Errorf("media %s: delete record: %w", m.ID, err)
	}
	return nil
}

func (s *MediaService) invalidate(ctx context.Context) {
	sharedCache.InvalidateOrWarn(ctx, s.reads.Cache(), s.cacheTimeout, s.log, mediaDomain.CachePrefix)
}
