package bus

import (
	"errors"
	"fmt"
)

type FailurePolicy string

const (
	// PolicyAck confirma el mensaje aunque el handler falle: se pierde.
	PolicyAck FailurePolicy = "ack"
	// PolicyRequeue reentrega hasta MaxRetries veces y luego descarta.
	PolicyRequeue FailurePolicy = "requeue"
	// PolicyDeadLetter reentrega hasta MaxRetries veces y luego manda a la cola muerta.
	PolicyDeadLetter FailurePolicy = "deadletter"
)

type Outcome int

const (
	Ack Outcome = iota
	Retry
	DeadLetter
)

func (o Outcome) String() string {
	switch o {
	case Retry:
		return "retry"
	case DeadLetter:
		return "deadletter"
	default:
		return "ack"
	}
}

type DeliveryPolicy struct {
	OnFailure  FailurePolicy
	MaxRetries int
}

func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{OnFailure: PolicyDeadLetter, MaxRetries: 3}
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case PolicyAck, PolicyRequeue, PolicyDeadLetter:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

// Decide qué hacer con una entrega tras ejecutar el handler.
// attempt es el número de entrega (1 = primera). Los mensajes envenenados nunca se reintentan.
func (p DeliveryPolicy) Decide(attempt int, err error) Outcome {
	if err == nil {
		return Ack
	}

	exhausted := errors.Is(err, ErrPoison) || attempt > p.MaxRetries
	switch p.OnFailure {
	case PolicyAck:
		return Ack
	case PolicyRequeue:
		if exhausted {
			return Ack
		}
		return Retry
	default:
		if exhausted {
			return DeadLetter
		}
		return Retry
	}
}
