package events

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
	sharedEvents "github.com/davicafu/postmesh/internal/shared/events"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

// Projector es lo que el consumidor necesita del servicio de búsqueda.
type Projector interface {
	HandlePostCreated(ctx context.Context, evt sharedEvents.PostCreatedEvent) error
	HandlePostUpdated(ctx context.Context, evt sharedEvents.PostUpdatedEvent) error
	HandlePostDeleted(ctx context.Context, evt sharedEvents.PostDeletedEvent) error
}

// SearchConsumer liga cada routing key de post a su handler de proyección.
type SearchConsumer struct {
	projector Projector
	log       *zap.Logger
}

func NewSearchConsumer(projector Projector, logger *zap.Logger) *SearchConsumer {
	return &SearchConsumer{projector: projector, log: logger}
}

// Subscribe abre una suscripción por routing key. Si alguna falla cierra las anteriores.
func (c *SearchConsumer) Subscribe(ctx context.Context, sub bus.Subscriber) ([]bus.Subscription, error) {
	bindings := []struct {
		key string
		h   bus.Handler
	}{
		{sharedEvents.PostCreated, bus.JSONHandler(poisonOnInvalid(c.projector.HandlePostCreated))},
		{sharedEvents.PostUpdated, bus.JSONHandler(poisonOnInvalid(c.projector.HandlePostUpdated))},
		{sharedEvents.PostDeleted, bus.JSONHandler(poisonOnInvalid(c.projector.HandlePostDeleted))},
	}

	subs := make([]bus.Subscription, 0, len(bindings))
	for _, b := range bindings {
		s, err := sub.Subscribe(ctx, b.key, b.h)
		if err != nil {
			for _, prev := range subs {
				_ = prev.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe %s: %w", b.key, err)
		}
		c.log.Info("Subscribed to event", zap.String("routing_key", b.key))
		subs = append(subs, s)
	}
	return subs, nil
}

// Un evento sin postId no se arregla reintentando.
func poisonOnInvalid[T any](h func(context.Context, T) error) func(context.Context, T) error {
	return func(ctx context.Context, evt T) error {
		err := h(ctx, evt)
		if errors.Is(err, searchDomain.ErrInvalidEvent) {
			return fmt.Errorf("%w: %v", bus.ErrPoison, err)
		}
		return err
	}
}
