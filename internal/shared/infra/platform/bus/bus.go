package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrClosed       = errors.New("bus closed")
	ErrNotConnected = errors.New("bus not connected")
)

// Message es lo que recibe un Handler: la routing key con la que se publicó y el payload JSON crudo.
type Message struct {
	ID          string
	RoutingKey  string
	Body        []byte
	PublishedAt time.Time
	// Attempt empieza en 1 y crece con cada reentrega del mismo mensaje a la misma suscripción.
	Attempt int
}

type Handler func(ctx context.Context, msg Message) error

// Publisher publica en el exchange compartido. No confirma la entrega a ningún consumidor.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// Subscriber declara una cola exclusiva ligada a routingKey (admite '*' y '#').
type Subscriber interface {
	Subscribe(ctx context.Context, routingKey string, h Handler) (Subscription, error)
}

type Subscription interface {
	RoutingKey() string
	// Unsubscribe deja de consumir y borra la cola. Es idempotente.
	Unsubscribe() error
}

// Bus agrupa ambos lados; cada driver (rabbitmq, kafka, memory) lo implementa.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Encode serializa el payload a JSON salvo que ya venga en bytes.
func Encode(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}
