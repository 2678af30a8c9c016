package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

type subscription struct {
	conn    *Connection
	pattern string
	handler sharedBus.Handler

	mu        sync.Mutex
	ch        *amqp.Channel
	queue     string
	tag       string
	loopDone  chan struct{}
	cancelled bool
	once      sync.Once
}

// Subscribe registra la suscripción y, si el bus está disponible, declara su cola exclusiva.
// Si no lo está, la suscripción queda pendiente y el supervisor (Run) la enlaza al reconectar.
func (c *Connection) Subscribe(ctx context.Context, routingKey string, h sharedBus.Handler) (sharedBus.Subscription, error) {
	sub := &subscription{conn: c, pattern: routingKey, handler: h}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, sharedBus.ErrClosed
	}
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	ch, err := c.Connect(ctx)
	if err != nil {
		c.log.Warn("Bus unavailable, subscription pending", zap.String("routing_key", routingKey), zap.Error(err))
		return sub, nil
	}
	if err := sub.bind(ch); err != nil {
		c.log.Error("Error binding subscription", zap.String("routing_key", routingKey), zap.Error(err))
	}
	return sub, nil
}

func (c *Connection) remove(sub *subscription) {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
}

func (s *subscription) RoutingKey() string { return s.pattern }

func (s *subscription) running(ch *amqp.Channel) bool {
	if s.ch != ch || s.loopDone == nil {
		return false
	}
	select {
	case <-s.loopDone:
		return false
	default:
		return true
	}
}

// bind declara una cola anónima, exclusiva y autoDelete, la enlaza al exchange y arranca el bucle de consumo.
// autoDelete hace que la cola desaparezca con su consumidor aunque la conexión siga viva.
func (s *subscription) bind(ch *amqp.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.running(ch) {
		return nil
	}
	if s.queue != "" && s.ch != ch {
		// Cola del canal anterior: normalmente ya la borró autoDelete.
		if _, err := ch.QueueDelete(s.queue, false, false, false); err != nil {
			s.conn.log.Warn("Error deleting stale queue", zap.String("queue", s.queue), zap.Error(err))
		}
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, s.pattern, s.conn.opts.Exchange, false, nil); err != nil {
		return err
	}
	tag := "postmesh-" + uuid.NewString()
	deliveries, err := ch.Consume(q.Name, tag, false, true, false, false, nil)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	s.ch, s.queue, s.tag, s.loopDone = ch, q.Name, tag, done
	go s.loop(ch, q.Name, deliveries, done)

	s.conn.log.Info("Subscription bound",
		zap.String("routing_key", s.pattern),
		zap.String("queue", q.Name),
	)
	return nil
}

// loop procesa las entregas de una en una hasta que el canal de entregas se cierra
// (cancelación del consumidor o caída del canal).
func (s *subscription) loop(ch *amqp.Channel, queue string, deliveries <-chan amqp.Delivery, done chan struct{}) {
	defer close(done)
	opts := s.conn.opts
	log := s.conn.log

	for d := range deliveries {
		msg := toMessage(d)
		outcome := sharedBus.Deliver(context.Background(), s.handler, msg, opts.Policy, opts.HandlerTimeout, log)

		switch outcome {
		case sharedBus.Retry:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := republish(ctx, ch, queue, d, msg)
			cancel()
			if err != nil {
				log.Error("Error requeueing message", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
				_ = d.Nack(false, true)
				continue
			}
		case sharedBus.DeadLetter:
			if opts.DeadLetterExchange != "" {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := deadLetter(ctx, ch, opts.DeadLetterExchange, d, msg)
				cancel()
				if err != nil {
					log.Error("Error dead-lettering message", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
				}
			}
		}
		_ = d.Ack(false)
	}
}

// Unsubscribe cancela el consumidor, borra la cola y espera a que termine la entrega en curso.
func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.conn.remove(s)

		s.mu.Lock()
		s.cancelled = true
		ch, tag, queue, done := s.ch, s.tag, s.queue, s.loopDone
		s.mu.Unlock()

		if ch == nil {
			return
		}
		if !ch.IsClosed() {
			if cerr := ch.Cancel(tag, false); cerr != nil {
				err = cerr
			}
			if _, derr := ch.QueueDelete(queue, false, false, false); derr != nil && err == nil {
				err = derr
			}
		}
		if done != nil {
			<-done
		}
	})
	return err
}
