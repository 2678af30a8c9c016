package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/postmesh/internal/shared/events"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

// Subscribe liga el handler de analítica a todo el ciclo de vida de los posts (post.*).
func Subscribe(ctx context.Context, sub bus.Subscriber, h bus.Handler, log *zap.Logger) (bus.Subscription, error) {
	s, err := sub.Subscribe(ctx, sharedEvents.PostAll, h)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", sharedEvents.PostAll, err)
	}
	log.Info("Subscribed to event", zap.String("routing_key", sharedEvents.PostAll))
	return s, nil
}
