package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

// InMemoryEventBus reproduce un topic exchange dentro del proceso.
// Cada suscripción tiene su propia cola FIFO sin límite y un único goroutine que la consume,
// así una suscripción lenta o que falla no bloquea al resto.
type InMemoryEventBus struct {
	mu      sync.RWMutex
	subs    map[*subscription]struct{}
	closed  bool
	policy  sharedBus.DeliveryPolicy
	timeout time.Duration
	log     *zap.Logger

	deadMu sync.Mutex
	dead   []sharedBus.Message
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.Bus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(policy sharedBus.DeliveryPolicy, handlerTimeout time.Duration, log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subs:    make(map[*subscription]struct{}),
		policy:  policy,
		timeout: handlerTimeout,
		log:     log,
	}
}

// Publish encola una copia del mensaje en cada suscripción cuyo patrón casa con la routing key.
func (b *InMemoryEventBus) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := sharedBus.Encode(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return sharedBus.ErrClosed
	}

	msg := sharedBus.Message{
		ID:          uuid.NewString(),
		RoutingKey:  routingKey,
		Body:        body,
		PublishedAt: time.Now().UTC(),
		Attempt:     1,
	}
	for sub := range b.subs {
		if sharedBus.MatchRoutingKey(sub.pattern, routingKey) {
			sub.enqueue(msg)
		}
	}
	return nil
}

func (b *InMemoryEventBus) Subscribe(ctx context.Context, routingKey string, h sharedBus.Handler) (sharedBus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, sharedBus.ErrClosed
	}

	sub := &subscription{
		bus:     b,
		pattern: routingKey,
		handler: h,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	b.subs[sub] = struct{}{}
	go sub.loop()

	b.log.Debug("Subscription started", zap.String("routing_key", routingKey))
	return sub, nil
}

// DeadLetters devuelve una copia de lo enviado a la cola muerta.
func (b *InMemoryEventBus) DeadLetters() []sharedBus.Message {
	b.deadMu.Lock()
	defer b.deadMu.Unlock()
	out := make([]sharedBus.Message, len(b.dead))
	copy(out, b.dead)
	return out
}

// Close para todas las suscripciones y rechaza publicaciones posteriores.
func (b *InMemoryEventBus) Close() error {
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
	return nil
}

func (b *InMemoryEventBus) remove(sub *subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

func (b *InMemoryEventBus) deadLetter(msg sharedBus.Message) {
	b.deadMu.Lock()
	b.dead = append(b.dead, msg)
	b.deadMu.Unlock()
}

type subscription struct {
	bus     *InMemoryEventBus
	pattern string
	handler sharedBus.Handler

	mu     sync.Mutex
	queue  []sharedBus.Message
	signal chan struct{}

	once    sync.Once
	done    chan struct{}
	stopped chan struct{}
}

func (s *subscription) RoutingKey() string { return s.pattern }

// Unsubscribe descarta lo pendiente y espera a que termine la entrega en curso.
func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.done)
	})
	<-s.stopped
	return nil
}

func (s *subscription) enqueue(msg sharedBus.Message) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) next() (sharedBus.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return sharedBus.Message{}, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, true
}

// loop entrega de uno en uno: hasta que el handler no devuelve, no sale el siguiente mensaje.
func (s *subscription) loop() {
	defer close(s.stopped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	for {
		msg, ok := s.next()
		if !ok {
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case <-s.done:
			return
		default:
		}

		switch sharedBus.Deliver(ctx, s.handler, msg, s.bus.policy, s.bus.timeout, s.bus.log) {
		case sharedBus.Retry:
			msg.Attempt++
			s.enqueue(msg)
		case sharedBus.DeadLetter:
			s.bus.deadLetter(msg)
		}
	}
}
