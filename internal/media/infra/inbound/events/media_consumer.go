package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/postmesh/internal/shared/events"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

type PostDeletedHandler interface {
	HandlePostDeleted(ctx context.Context, evt sharedEvents.PostDeletedEvent) error
}

// MediaConsumer sólo escucha post.deleted.
type MediaConsumer struct {
	handler PostDeletedHandler
	log     *zap.Logger
}

func NewMediaConsumer(handler PostDeletedHandler, logger *zap.Logger) *MediaConsumer {
	return &MediaConsumer{handler: handler, log: logger}
}

func (c *MediaConsumer) Subscribe(ctx context.Context, sub bus.Subscriber) (bus.Subscription, error) {
	s, err := sub.Subscribe(ctx, sharedEvents.PostDeleted, bus.JSONHandler(c.handler.HandlePostDeleted))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", sharedEvents.PostDeleted, err)
	}
	c.log.Info("Subscribed to event", zap.String("routing_key", sharedEvents.PostDeleted))
	return s, nil
}
