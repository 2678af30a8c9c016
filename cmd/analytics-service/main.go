package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	analyticsApp "github.com/davicafu/postmesh/internal/analytics/application"
	analyticsDomain "github.com/davicafu/postmesh/internal/analytics/domain"
	analyticsEvents "github.com/davicafu/postmesh/internal/analytics/infra/inbound/events"
	analyticsHttp "github.com/davicafu/postmesh/internal/analytics/infra/inbound/http"
	"github.com/davicafu/postmesh/internal/analytics/infra/outbound/analytics/clickhouse"
	analyticsMemory "github.com/davicafu/postmesh/internal/analytics/infra/outbound/analytics/memory"
	config "github.com/davicafu/postmesh/internal/config"
	"github.com/davicafu/postmesh/internal/shared/infra/bootstrap"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/pkg/logger"
)

const serviceName = "analytics-service"

func main() {
	cfg := config.LoadConfig(serviceName)
	logger.Init(serviceName, cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- DB ----------------
	var repo analyticsDomain.AnalyticsRepository
	switch cfg.AnalyticsStore {
	case "clickhouse":
		ch, err := clickhouse.NewActivityRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Fatal("ClickHouse connection error", zap.Error(err))
		}
		if err := ch.InitSchema(); err != nil {
			log.Fatal("failed to initialize ClickHouse schema", zap.Error(err))
		}
		log.Info("Connected to ClickHouse", zap.String("addr", cfg.ClickHouseAddr))
		repo = ch
	case "memory":
		log.Warn("Using in-memory analytics store")
		repo = analyticsMemory.NewInMemoryActivityRepo()
	default:
		log.Fatal("unknown analytics store", zap.String("store", cfg.AnalyticsStore))
	}

	// ---------------- Cache ----------------
	cache, rdb := bootstrap.NewCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// --------------- Servicio --------------
	service := analyticsApp.NewAnalyticsService(repo, bootstrap.NewReadThrough(cache, cfg, log), cfg.ListCacheTTL, cfg.CacheOpTimeout, log)

	// ---------------- Events ---------------
	eventBus, err := bootstrap.NewBus(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create event bus", zap.Error(err))
	}
	defer eventBus.Close()

	sub, err := analyticsEvents.Subscribe(ctx, eventBus, service.HandleEvent, log)
	if err != nil {
		log.Fatal("failed to subscribe to post events", zap.Error(err))
	}
	defer sub.Unsubscribe()

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(bootstrap.NewLimiter(rdb, "ratelimit:analytics:", cfg.RateLimit, cfg.RateLimitWindow), log)
	router.Use(sharedHTTP.Timeout(cfg.StoreTimeout))
	analyticsHttp.RegisterAnalyticsRoutes(router, analyticsHttp.NewAnalyticsHandler(service, log), log)

	if err := bootstrap.Serve(ctx, router, cfg.HTTPPort, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("Analytics service stopped")
}
