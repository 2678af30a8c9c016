// Package bootstrap agrupa el cableado común de los procesos: bus, caché, limitador, Mongo y servidor HTTP.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/config"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
	kafkaBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus/kafka"
	memoryBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus/memory"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/bus/rabbitmq"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// DeliveryPolicy lee la política de fallo de la configuración.
func DeliveryPolicy(cfg *config.Config) (sharedBus.DeliveryPolicy, error) {
	onFailure, err := sharedBus.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return sharedBus.DeliveryPolicy{}, err
	}
	return sharedBus.DeliveryPolicy{OnFailure: onFailure, MaxRetries: cfg.MaxRetries}, nil
}

// NewBus crea el driver configurado. Con RabbitMQ arranca el supervisor de reconexión,
// así que un broker caído al arrancar no es fatal.
func NewBus(ctx context.Context, cfg *config.Config, log *zap.Logger) (sharedBus.Bus, error) {
	policy, err := DeliveryPolicy(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.BusDriver {
	case "rabbitmq":
		conn := rabbitmq.NewConnection(rabbitmq.Options{
			URL:                cfg.RabbitMQURL,
			Exchange:           cfg.Exchange,
			DeadLetterExchange: cfg.DeadLetterExchange,
			DialAttempts:       cfg.DialAttempts,
			DialBackoff:        cfg.DialBackoff,
			DialMaxBackoff:     cfg.DialMaxBackoff,
			Policy:             policy,
			HandlerTimeout:     cfg.HandlerTimeout,
		}, log)
		go conn.Run(ctx)
		log.Info("Using RabbitMQ event bus", zap.String("exchange", cfg.Exchange))
		return conn, nil
	case "kafka":
		log.Info("Using Kafka event bus", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return kafkaBus.NewKafkaBus(cfg.KafkaBrokers, cfg.KafkaTopic, policy, cfg.HandlerTimeout, log), nil
	case "memory":
		log.Warn("Using in-memory event bus: events never leave this process")
		return memoryBus.NewInMemoryEventBus(policy, cfg.HandlerTimeout, log), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.BusDriver)
	}
}

// NewCache usa Redis si responde y si no cae a la caché en memoria. El cliente es nil en ese caso.
func NewCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (sharedCache.Cache, *redis.Client) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis not available, using in-memory cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return sharedCache.NewInMemoryCache(time.Duration(cfg.ListCacheTTL)*time.Second, time.Minute), nil
	}
	log.Info("Redis connected, cache enabled", zap.String("addr", cfg.RedisAddr))
	return sharedCache.NewRedisCache(rdb, time.Duration(cfg.ListCacheTTL)*time.Second), rdb
}

// NewReadThrough envuelve la caché con los ajustes comunes.
func NewReadThrough(c sharedCache.Cache, cfg *config.Config, log *zap.Logger) *sharedCache.ReadThrough {
	return sharedCache.NewReadThrough(c, cfg.CacheOpTimeout, cfg.SingleFlight, log)
}

// NewLimiter comparte contador entre réplicas si hay Redis; si no, cada proceso cuenta lo suyo.
func NewLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) ratelimit.Limiter {
	if rdb == nil {
		return ratelimit.NewInMemoryLimiter(limit, window)
	}
	return ratelimit.NewRedisLimiter(rdb, prefix, limit, window)
}

func ConnectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongoDB: %w", err)
	}
	return client, nil
}

// NewRouter crea el engine con recovery, log por petición, rate limit y /health.
func NewRouter(limiter ratelimit.Limiter, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), sharedHTTP.RequestLogger(log))
	if limiter != nil {
		router.Use(sharedHTTP.RateLimit(limiter, log))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// Serve atiende en port hasta que se cancela ctx y después apaga con un plazo de gracia.
func Serve(ctx context.Context, handler http.Handler, port string, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server running", zap.String("url", "http://localhost:"+port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Unsubscribe cierra las suscripciones registrando los fallos.
func Unsubscribe(subs []sharedBus.Subscription, log *zap.Logger) {
	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			log.Warn("Error unsubscribing", zap.String("routing_key", s.RoutingKey()), zap.Error(err))
		}
	}
}
