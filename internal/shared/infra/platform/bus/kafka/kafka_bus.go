package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

const headerMessageID = "message-id"

// KafkaBus emula el topic exchange sobre un único topic de Kafka: la routing key viaja como clave
// del mensaje y cada suscripción es un consumer group propio que filtra por patrón en cliente.
type KafkaBus struct {
	brokers  []string
	topic    string
	dlqTopic string
	writer   *kafka.Writer
	policy   sharedBus.DeliveryPolicy
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var _ sharedBus.Bus = (*KafkaBus)(nil)

func NewKafkaBus(brokers []string, topic string, policy sharedBus.DeliveryPolicy, handlerTimeout time.Duration, log *zap.Logger) *KafkaBus {
	return &KafkaBus{
		brokers:  brokers,
		topic:    topic,
		dlqTopic: topic + ".dead",
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		policy:  policy,
		timeout: handlerTimeout,
		log:     log,
		subs:    make(map[*subscription]struct{}),
	}
}

func (b *KafkaBus) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := sharedBus.Encode(payload)
	if err != nil {
		return err
	}
	return b.write(ctx, b.topic, routingKey, uuid.NewString(), body)
}

func (b *KafkaBus) write(ctx context.Context, topic, key, id string, body []byte) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: headerMessageID, Value: []byte(id)}},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		b.log.Error("Error publishing to Kafka", zap.String("routing_key", key), zap.Error(err))
		return err
	}
	return nil
}

// Subscribe arranca a leer desde el final del topic: no hay replay de lo publicado antes.
func (b *KafkaBus) Subscribe(ctx context.Context, routingKey string, h sharedBus.Handler) (sharedBus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, sharedBus.ErrClosed
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       b.topic,
		GroupID:     "postmesh-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
	})

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		bus:     b,
		pattern: routingKey,
		handler: h,
		reader:  reader,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	b.subs[sub] = struct{}{}
	go sub.loop(subCtx)

	b.log.Info("🎧 Kafka subscription started",
		zap.String("topic", b.topic),
		zap.String("routing_key", routingKey),
		zap.Strings("brokers", b.brokers),
	)
	return sub, nil
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return b.writer.Close()
}

type subscription struct {
	bus     *KafkaBus
	pattern string
	handler sharedBus.Handler
	reader  *kafka.Reader
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

func (s *subscription) RoutingKey() string { return s.pattern }

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()

		s.cancel()
		<-s.stopped
		err = s.reader.Close()
	})
	return err
}

// loop mantiene el orden de la partición: los reintentos se hacen en sitio antes de confirmar el offset.
func (s *subscription) loop(ctx context.Context) {
	defer close(s.stopped)
	log := s.bus.log

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("Error al leer mensaje de Kafka", zap.Error(err))
			continue
		}

		key := string(m.Key)
		if sharedBus.MatchRoutingKey(s.pattern, key) {
			s.deliver(ctx, m)
		}

		if err := s.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.Warn("Error committing Kafka offset", zap.String("routing_key", key), zap.Error(err))
		}
	}
}

func (s *subscription) deliver(ctx context.Context, m kafka.Message) {
	msg := sharedBus.Message{
		ID:          messageID(m),
		RoutingKey:  string(m.Key),
		Body:        m.Value,
		PublishedAt: m.Time,
		Attempt:     1,
	}

	for {
		switch sharedBus.Deliver(ctx, s.handler, msg, s.bus.policy, s.bus.timeout, s.bus.log) {
		case sharedBus.Retry:
			if ctx.Err() != nil {
				return
			}
			msg.Attempt++
			continue
		case sharedBus.DeadLetter:
			_ = s.bus.write(context.WithoutCancel(ctx), s.bus.dlqTopic, msg.RoutingKey, msg.ID, msg.Body)
		}
		return
	}
}

func messageID(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == headerMessageID {
			return string(h.Value)
		}
	}
	return ""
}
