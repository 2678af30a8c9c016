package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrPoison marca un contenido que nunca se va a poder procesar (p.ej. JSON inválido).
var ErrPoison = errors.New("poison message")

// JSONHandler envuelve un handler tipado; si el body no decodifica devuelve ErrPoison.
func JSONHandler[T any](h func(context.Context, T) error) Handler {
	return func(ctx context.Context, msg Message) error {
		var v T
		if err := json.Unmarshal(msg.Body, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		return h(ctx, v)
	}
}

// Invoke ejecuta el handler con un timeout y convierte un panic en error,
// así un handler roto no tumba el bucle de consumo.
func Invoke(ctx context.Context, h Handler, msg Message, timeout time.Duration) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return h(ctx, msg)
}

// Deliver ejecuta el handler y aplica la política. El driver sólo tiene que materializar el Outcome.
func Deliver(ctx context.Context, h Handler, msg Message, policy DeliveryPolicy, timeout time.Duration, log *zap.Logger) Outcome {
	err := Invoke(ctx, h, msg, timeout)
	outcome := policy.Decide(msg.Attempt, err)
	if err == nil {
		return outcome
	}

	fields := []zap.Field{
		zap.String("routing_key", msg.RoutingKey),
		zap.String("message_id", msg.ID),
		zap.Int("attempt", msg.Attempt),
		zap.String("outcome", outcome.String()),
		zap.Error(err),
	}
	if outcome == Retry {
		log.Warn("Event handler failed, retrying", fields...)
	} else {
		log.Error("Event handler failed", fields...)
	}
	return outcome
}
