package bus

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Emitter es el lado productor de los servicios de escritura.
// La emisión es best-effort: si falla se registra y la escritura ya confirmada no se deshace.
type Emitter struct {
	pub     Publisher
	timeout time.Duration
	log     *zap.Logger
}

func NewEmitter(pub Publisher, timeout time.Duration, log *zap.Logger) *Emitter {
	return &Emitter{pub: pub, timeout: timeout, log: log}
}

// Emit publica desligado de la cancelación de la petición HTTP, pero acotado por el timeout de publicación.
func (e *Emitter) Emit(ctx context.Context, routingKey string, payload interface{}) {
	if e == nil || e.pub == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := e.pub.Publish(ctx, routingKey, payload); err != nil {
		e.log.Error("Error publishing event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	e.log.Debug("Event published", zap.String("routing_key", routingKey))
}
