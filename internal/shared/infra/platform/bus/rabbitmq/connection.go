package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

type Options struct {
	URL      string
	Exchange string
	// DeadLetterExchange sólo se declara si la política es deadletter.
	DeadLetterExchange string

	DialAttempts   int
	DialBackoff    time.Duration
	DialMaxBackoff time.Duration

	Policy         sharedBus.DeliveryPolicy
	HandlerTimeout time.Duration

	// Dial permite sustituir amqp.Dial (tests).
	Dial func(url string) (*amqp.Connection, error)
}

// Connection es la única conexión AMQP del proceso. Un solo canal compartido lo usan
// tanto el productor como todas las suscripciones; el canal serializa las escrituras de frames.
type Connection struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	state   State
	lost    chan struct{} // se cierra cuando cae la conexión o el canal actual
	dialing *dialAttempt  // apertura en curso; nil si no hay ninguna
	subs    map[*subscription]struct{}
	closed  bool

	stop     chan struct{}
	stopOnce sync.Once
}

// dialAttempt es una apertura de canal compartida por todos los que llaman a Connect mientras dura.
// ch y err sólo se leen después de cerrar done.
type dialAttempt struct {
	done chan struct{}
	ch   *amqp.Channel
	err  error
}

var _ sharedBus.Bus = (*Connection)(nil)

func NewConnection(opts Options, log *zap.Logger) *Connection {
	if opts.Dial == nil {
		opts.Dial = amqp.Dial
	}
	if opts.DialAttempts <= 0 {
		opts.DialAttempts = 1
	}
	if opts.DialBackoff <= 0 {
		opts.DialBackoff = 500 * time.Millisecond
	}
	if opts.DialMaxBackoff <= 0 {
		opts.DialMaxBackoff = 30 * time.Second
	}
	return &Connection{
		opts: opts,
		log:  log,
		subs: make(map[*subscription]struct{}),
		stop: make(chan struct{}),
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect devuelve el canal compartido, abriéndolo si hace falta. Si ya está abierto no reconecta.
// La apertura corre fuera de c.mu y la comparten todos los que llamen mientras dura;
// cada uno espera como mucho lo que le permita su ctx.
func (c *Connection) Connect(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, sharedBus.ErrClosed
	}
	if c.ch != nil && !c.ch.IsClosed() {
		ch := c.ch
		c.mu.Unlock()
		return ch, nil
	}
	a := c.dialing
	if a == nil {
		a = &dialAttempt{done: make(chan struct{})}
		c.dialing = a
		go c.open(a)
	}
	c.mu.Unlock()

	select {
	case <-a.done:
		return a.ch, a.err
	case <-ctx.Done():
		return nil, fmt.Errorf("connect: %w", ctx.Err())
	case <-c.stop:
		return nil, sharedBus.ErrClosed
	}
}

// open dialoga y declara la topología sin c.mu; sólo lo toma para publicar el resultado.
func (c *Connection) open(a *dialAttempt) {
	defer close(a.done)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	ch, conn, err := c.openChannel(conn)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialing = nil
	if c.closed {
		// Close ya pasó: lo abierto aquí no lo cerraría nadie.
		if ch != nil {
			_ = ch.Close()
		}
		if conn != nil {
			_ = conn.Close()
		}
		c.state = StateClosed
		a.err = sharedBus.ErrClosed
		return
	}
	if conn != nil {
		c.conn = conn
	}
	if err != nil {
		c.state = StateClosed
		a.err = err
		return
	}

	c.ch = ch
	c.state = StateOpen
	c.lost = make(chan struct{})
	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)), ch.NotifyClose(make(chan *amqp.Error, 1)), c.lost)
	a.ch = ch

	c.log.Info("RabbitMQ channel open", zap.String("exchange", c.opts.Exchange))
}

func (c *Connection) openChannel(conn *amqp.Connection) (*amqp.Channel, *amqp.Connection, error) {
	if conn == nil || conn.IsClosed() {
		var err error
		if conn, err = c.dialWithRetry(); err != nil {
			return nil, nil, err
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, conn, fmt.Errorf("open channel: %w", err)
	}
	if err := c.declareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, conn, err
	}
	return ch, conn, nil
}

func (c *Connection) declareTopology(ch *amqp.Channel) error {
	// una sola entrega sin confirmar por consumidor
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	if err := ch.ExchangeDeclare(c.opts.Exchange, "topic", false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.opts.Exchange, err)
	}
	if c.opts.Policy.OnFailure != sharedBus.PolicyDeadLetter || c.opts.DeadLetterExchange == "" {
		return nil
	}

	if err := ch.ExchangeDeclare(c.opts.DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.opts.DeadLetterExchange+".queue", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	return ch.QueueBind(q.Name, "#", c.opts.DeadLetterExchange, false, nil)
}

func (c *Connection) watch(connClosed, chClosed <-chan *amqp.Error, lost chan struct{}) {
	var err *amqp.Error
	select {
	case err = <-connClosed:
	case err = <-chClosed:
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	close(lost)

	if err != nil {
		c.log.Warn("RabbitMQ connection lost", zap.String("reason", err.Reason), zap.Int("code", err.Code))
	}
}

// dialWithRetry aplica backoff exponencial con tope. Sólo lo corta Close: quien espera
// la conexión se desengancha por su propio ctx en Connect.
func (c *Connection) dialWithRetry() (*amqp.Connection, error) {
	var lastErr error
	for i := 1; i <= c.opts.DialAttempts; i++ {
		conn, err := c.opts.Dial(c.opts.URL)
		if err == nil {
			if i > 1 {
				c.log.Info("RabbitMQ connected", zap.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err
		if i == c.opts.DialAttempts {
			break
		}

		sleep := backoff(c.opts.DialBackoff, c.opts.DialMaxBackoff, i)
		c.log.Warn("RabbitMQ dial failed",
			zap.Int("attempt", i),
			zap.Duration("sleep", sleep),
			zap.Error(err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-c.stop:
			timer.Stop()
			return nil, sharedBus.ErrClosed
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: %d attempts: %v", sharedBus.ErrNotConnected, c.opts.DialAttempts, lastErr)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d <= 0 || d > max {
		return max
	}
	return d
}

// Run supervisa la conexión hasta que se cancela ctx o se llama a Close:
// reconecta con backoff y vuelve a declarar las colas de todas las suscripciones vivas.
func (c *Connection) Run(ctx context.Context) {
	failures := 0
	for {
		ch, err := c.Connect(ctx)
		if err != nil {
			if errors.Is(err, sharedBus.ErrClosed) || ctx.Err() != nil {
				return
			}
			failures++
			wait := backoff(c.opts.DialBackoff, c.opts.DialMaxBackoff, failures)
			c.log.Error("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-time.After(wait):
			}
			continue
		}
		failures = 0
		c.bindAll(ch)

		c.mu.Lock()
		lost := c.lost
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-lost:
		}
	}
}

// bindAll declara la cola de cada suscripción que no esté ya consumiendo en ch.
func (c *Connection) bindAll(ch *amqp.Channel) {
	c.mu.Lock()
	pending := make([]*subscription, 0, len(c.subs))
	for sub := range c.subs {
		pending = append(pending, sub)
	}
	c.mu.Unlock()

	for _, sub := range pending {
		if err := sub.bind(ch); err != nil {
			c.log.Error("Error binding subscription", zap.String("routing_key", sub.pattern), zap.Error(err))
		}
	}
}

// Close cancela las suscripciones, borra sus colas y cierra canal y conexión.
func (c *Connection) Close() error {
	// stop primero: corta el backoff de una apertura en curso sin esperar a c.mu.
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
