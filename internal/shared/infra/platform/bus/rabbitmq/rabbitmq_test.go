package rabbitmq

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
)

func TestBackoff_IsExponentialAndCapped(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	assert.Equal(t, 100*time.Millisecond, backoff(base, max, 1))
	assert.Equal(t, 200*time.Millisecond, backoff(base, max, 2))
	assert.Equal(t, 800*time.Millisecond, backoff(base, max, 4))
	assert.Equal(t, time.Second, backoff(base, max, 5))
	assert.Equal(t, time.Second, backoff(base, max, 200))
}

func TestToMessage_ReadsRetryHeaders(t *testing.T) {
	d := amqp.Delivery{
		MessageId:  "m1",
		RoutingKey: "amq.gen-queue",
		Body:       []byte(`{}`),
		Headers: amqp.Table{
			headerAttempt:    int32(3),
			headerRoutingKey: "post.deleted",
		},
	}

	msg := toMessage(d)

	assert.Equal(t, "post.deleted", msg.RoutingKey)
	assert.Equal(t, 3, msg.Attempt)
	assert.Equal(t, "m1", msg.ID)
}

func TestToMessage_FirstDelivery(t *testing.T) {
	msg := toMessage(amqp.Delivery{RoutingKey: "post.created"})

	assert.Equal(t, "post.created", msg.RoutingKey)
	assert.Equal(t, 1, msg.Attempt)
}

func TestConnect_DialFailureIsNotFatal(t *testing.T) {
	// Arrange
	var dials atomic.Int32
	conn := NewConnection(Options{
		URL:          "amqp://nowhere",
		Exchange:     "facebook_events",
		DialAttempts: 2,
		DialBackoff:  time.Millisecond,
		Dial: func(url string) (*amqp.Connection, error) {
			dials.Add(1)
			return nil, errors.New("connection refused")
		},
	}, zap.NewNop())
	defer conn.Close()

	// Act
	err := conn.Publish(context.Background(), "post.created", map[string]string{"postId": "p1"})
	sub, subErr := conn.Subscribe(context.Background(), "post.created", func(ctx context.Context, msg sharedBus.Message) error { return nil })

	// Assert
	assert.ErrorIs(t, err, sharedBus.ErrNotConnected)
	assert.NoError(t, subErr)
	require.NotNil(t, sub)
	assert.Equal(t, "post.created", sub.RoutingKey())
	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, int32(4), dials.Load())
	assert.NoError(t, sub.Unsubscribe())
}

func TestClose_IsIdempotent(t *testing.T) {
	conn := NewConnection(Options{URL: "amqp://nowhere", Exchange: "facebook_events"}, zap.NewNop())

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	_, err := conn.Connect(context.Background())
	assert.ErrorIs(t, err, sharedBus.ErrClosed)
}

func TestPublish_HonoursDeadlineWhileSupervisorRedials(t *testing.T) {
	// Arrange: el supervisor está en pleno backoff contra un broker caído
	dialed := make(chan struct{}, 1)
	conn := NewConnection(Options{
		URL:          "amqp://nowhere",
		Exchange:     "facebook_events",
		DialAttempts: 5,
		DialBackoff:  200 * time.Millisecond,
		Dial: func(url string) (*amqp.Connection, error) {
			select {
			case dialed <- struct{}{}:
			default:
			}
			return nil, errors.New("connection refused")
		},
	}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conn.Run(ctx)

	select {
	case <-dialed:
	case <-time.After(time.Second):
		t.Fatal("supervisor never dialed")
	}

	// Act
	pubCtx, pubCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer pubCancel()
	start := time.Now()
	err := conn.Publish(pubCtx, "post.created", map[string]string{"postId": "p1"})
	elapsed := time.Since(start)

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, StateClosed, conn.State())

	closeStart := time.Now()
	require.NoError(t, conn.Close())
	assert.Less(t, time.Since(closeStart), 500*time.Millisecond)
}

func TestConnect_ConcurrentCallersShareOneDial(t *testing.T) {
	var dials atomic.Int32
	release := make(chan struct{})
	conn := NewConnection(Options{
		URL:          "amqp://nowhere",
		Exchange:     "facebook_events",
		DialAttempts: 1,
		Dial: func(url string) (*amqp.Connection, error) {
			dials.Add(1)
			<-release
			return nil, errors.New("connection refused")
		},
	}, zap.NewNop())
	defer conn.Close()

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := conn.Connect(context.Background())
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return dials.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, <-errs, sharedBus.ErrNotConnected)
	}
	assert.Equal(t, int32(1), dials.Load())
}

// --- Integración: requiere un broker real ---

func newIntegrationConnection(t *testing.T, policy sharedBus.DeliveryPolicy) *Connection {
	t.Helper()
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set, skipping RabbitMQ integration test")
	}
	conn := NewConnection(Options{
		URL:                url,
		Exchange:           "postmesh_test_events",
		DeadLetterExchange: "postmesh_test_events.dead",
		DialAttempts:       3,
		DialBackoff:        100 * time.Millisecond,
		Policy:             policy,
		HandlerTimeout:     time.Second,
	}, zap.NewNop())
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go conn.Run(ctx)
	return conn
}

func TestIntegration_FanOutAndConnectIdempotent(t *testing.T) {
	conn := newIntegrationConnection(t, sharedBus.DefaultDeliveryPolicy())
	ctx := context.Background()

	first, err := conn.Connect(ctx)
	require.NoError(t, err)
	second, err := conn.Connect(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, StateOpen, conn.State())

	var a, b atomic.Int32
	_, err = conn.Subscribe(ctx, "post.deleted", func(ctx context.Context, msg sharedBus.Message) error {
		a.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = conn.Subscribe(ctx, "post.*", func(ctx context.Context, msg sharedBus.Message) error {
		b.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, conn.Publish(ctx, "post.deleted", map[string]string{"postId": "p1"}))

	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestIntegration_RetriesFailedHandler(t *testing.T) {
	conn := newIntegrationConnection(t, sharedBus.DeliveryPolicy{OnFailure: sharedBus.PolicyRequeue, MaxRetries: 3})
	ctx := context.Background()

	var calls atomic.Int32
	var lastAttempt atomic.Int32
	_, err := conn.Subscribe(ctx, "post.created", func(ctx context.Context, msg sharedBus.Message) error {
		lastAttempt.Store(int32(msg.Attempt))
		if calls.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, conn.Publish(ctx, "post.created", map[string]string{"postId": "p1"}))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(2), lastAttempt.Load())
}

func TestIntegration_QueueGoneAfterChannelLoss(t *testing.T) {
	conn := newIntegrationConnection(t, sharedBus.DefaultDeliveryPolicy())
	ctx := context.Background()

	sub, err := conn.Subscribe(ctx, "post.created", func(ctx context.Context, msg sharedBus.Message) error { return nil })
	require.NoError(t, err)
	s := sub.(*subscription)
	s.mu.Lock()
	oldCh, oldQueue := s.ch, s.queue
	s.mu.Unlock()
	require.NotNil(t, oldCh)

	// Sólo cae el canal; la conexión sigue viva.
	require.NoError(t, oldCh.Close())

	// El supervisor abre otro canal y vuelve a enlazar con una cola nueva.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.ch != oldCh && s.queue != "" && s.queue != oldQueue
	}, 5*time.Second, 20*time.Millisecond)

	ch, err := conn.Connect(ctx)
	require.NoError(t, err)
	conn.mu.Lock()
	amqpConn := conn.conn
	conn.mu.Unlock()
	checkCh, err := amqpConn.Channel()
	require.NoError(t, err)
	defer checkCh.Close()
	_, err = checkCh.QueueDeclarePassive(oldQueue, false, true, true, false, nil)
	assert.Error(t, err, "la cola del canal perdido no debe seguir enlazada")
	assert.False(t, ch.IsClosed())
}
