package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	analyticsDomain "github.com/davicafu/postmesh/internal/analytics/domain"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

// postRef son los campos comunes a todos los eventos post.*.
type postRef struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

// AnalyticsService proyecta todos los eventos de post en el log de actividad.
type AnalyticsService struct {
	repo         analyticsDomain.AnalyticsRepository
	reads        *sharedCache.ReadThrough
	summaryTTL   int
	cacheTimeout time.Duration
	now          func() time.Time
	log          *zap.Logger
}

func NewAnalyticsService(repo analyticsDomain.AnalyticsRepository, reads *sharedCache.ReadThrough, summaryTTL int, cacheTimeout time.Duration, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:         repo,
		reads:        reads,
		summaryTTL:   summaryTTL,
		cacheTimeout: cacheTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// HandleEvent es un bus.Handler: el tipo de evento es la routing key del mensaje.
func (s *AnalyticsService) HandleEvent(ctx context.Context, msg bus.Message) error {
	var ref postRef
	if err := json.Unmarshal(msg.Body, &ref); err != nil {
		return fmt.Errorf("%w: %v", bus.ErrPoison, err)
	}
	if ref.PostID == "" {
		return fmt.Errorf("%w: %v", bus.ErrPoison, analyticsDomain.ErrInvalidActivity)
	}

	occurredAt := msg.PublishedAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	err := s.repo.Record(ctx, &analyticsDomain.Activity{
		PostID:     ref.PostID,
		UserID:     ref.UserID,
		EventType:  msg.RoutingKey,
		OccurredAt: occurredAt.UTC(),
	})
	if err != nil {
		return err
	}

	sharedCache.InvalidateOrWarn(ctx, s.reads.Cache(), s.cacheTimeout, s.log, "", analyticsDomain.SummaryCacheKey)
	s.log.Debug("Activity recorded", zap.String("post_id", ref.PostID), zap.String("routing_key", msg.RoutingKey))
	return nil
}

// Summary cuenta filas por tipo de evento; cacheado en analytics:summary.
func (s *AnalyticsService) Summary(ctx context.Context) (*analyticsDomain.Summary, error) {
	return sharedCache.Fetch(ctx, s.reads, analyticsDomain.SummaryCacheKey, s.summaryTTL, s.repo.Summary)
}

// DailyTrend de los últimos days días, sin caché.
func (s *AnalyticsService) DailyTrend(ctx context.Context, days int) ([]analyticsDomain.DailyActivity, error) {
	if days < 1 {
		days = 7
	}
	end := s.now()
	start := end.AddDate(0, 0, -days)
	trend, err := s.repo.DailyTrend(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if trend == nil {
		trend = []analyticsDomain.DailyActivity{}
	}
	return trend, nil
}
