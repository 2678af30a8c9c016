package rabbitmq

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

const (
	headerAttempt    = "x-attempt"
	headerRoutingKey = "x-routing-key"
)

// Publish conecta de forma perezosa si todavía no hay canal. No espera confirmación del broker.
func (c *Connection) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := sharedBus.Encode(payload)
	if err != nil {
		return err
	}

	ch, err := c.Connect(ctx)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, c.opts.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		return err
	}

	c.log.Debug("published", zap.String("routing_key", routingKey), zap.String("exchange", c.opts.Exchange))
	return nil
}

// republish devuelve el mensaje a la cola de la suscripción por el exchange por defecto,
// conservando la routing key original en una cabecera.
func republish(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, msg sharedBus.Message) error {
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: d.ContentType,
		MessageId:   d.MessageId,
		Timestamp:   d.Timestamp,
		Headers: amqp.Table{
			headerAttempt:    int32(msg.Attempt + 1),
			headerRoutingKey: msg.RoutingKey,
		},
		Body: d.Body,
	})
}

func deadLetter(ctx context.Context, ch *amqp.Channel, exchange string, d amqp.Delivery, msg sharedBus.Message) error {
	return ch.PublishWithContext(ctx, exchange, msg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Headers: amqp.Table{
			headerAttempt:    int32(msg.Attempt),
			headerRoutingKey: msg.RoutingKey,
		},
		Body: d.Body,
	})
}

func toMessage(d amqp.Delivery) sharedBus.Message {
	msg := sharedBus.Message{
		ID:          d.MessageId,
		RoutingKey:  d.RoutingKey,
		Body:        d.Body,
		PublishedAt: d.Timestamp,
		Attempt:     1,
	}
	if rk, ok := d.Headers[headerRoutingKey].(string); ok && rk != "" {
		msg.RoutingKey = rk
	}
	if n := headerInt(d.Headers, headerAttempt); n > 0 {
		msg.Attempt = n
	}
	return msg
}

func headerInt(h amqp.Table, key string) int {
	switch v := h[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	default:
		return 0
	}
}
