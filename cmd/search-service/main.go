package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/davicafu/postmesh/internal/config"
	searchApp "github.com/davicafu/postmesh/internal/search/application"
	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
	searchEvents "github.com/davicafu/postmesh/internal/search/infra/inbound/events"
	searchHttp "github.com/davicafu/postmesh/internal/search/infra/inbound/http"
	searchMemory "github.com/davicafu/postmesh/internal/search/infra/outbound/db/memory"
	searchMongo "github.com/davicafu/postmesh/internal/search/infra/outbound/db/mongodb"
	searchPostgres "github.com/davicafu/postmesh/internal/search/infra/outbound/db/postgres"
	"github.com/davicafu/postmesh/internal/shared/infra/bootstrap"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/pkg/logger"
)

const (
	serviceName        = "search-service"
	tombstonePurgeTick = time.Hour
)

func main() {
	cfg := config.LoadConfig(serviceName)
	logger.Init(serviceName, cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- DB ----------------
	var repo searchDomain.SearchRepository
	switch cfg.SearchStore {
	case "mongo":
		client, err := bootstrap.ConnectMongo(ctx, cfg)
		if err != nil {
			log.Fatal("MongoDB connection error", zap.Error(err))
		}
		defer client.Disconnect(context.Background())

		repo, err = searchMongo.NewSearchRepoMongoDB(ctx, client, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("failed to initialize search store", zap.Error(err))
		}
		log.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	case "postgres":
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := searchPostgres.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		pg := searchPostgres.NewSearchRepoPostgres(db)
		go purgeTombstones(ctx, pg, log)
		repo = pg
	case "memory":
		log.Warn("Using in-memory search store")
		repo = searchMemory.NewInMemorySearchRepo()
	default:
		log.Fatal("unknown search store", zap.String("store", cfg.SearchStore))
	}

	// ---------------- Cache ----------------
	cache, rdb := bootstrap.NewCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// --------------- Servicio --------------
	service := searchApp.NewSearchService(repo, bootstrap.NewReadThrough(cache, cfg, log), searchApp.Options{
		SearchTTLSecs: cfg.SearchCacheTTL,
		TombstoneTTL:  cfg.TombstoneTTL,
		CacheTimeout:  cfg.CacheOpTimeout,
	}, log)

	// ---------------- Events ---------------
	eventBus, err := bootstrap.NewBus(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create event bus", zap.Error(err))
	}
	defer eventBus.Close()

	subs, err := searchEvents.NewSearchConsumer(service, log).Subscribe(ctx, eventBus)
	if err != nil {
		log.Fatal("failed to subscribe to post events", zap.Error(err))
	}
	defer bootstrap.Unsubscribe(subs, log)

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(bootstrap.NewLimiter(rdb, "ratelimit:search:", cfg.RateLimit, cfg.RateLimitWindow), log)
	router.Use(sharedHTTP.Timeout(cfg.StoreTimeout))
	searchHttp.RegisterSearchRoutes(router, searchHttp.NewSearchHandler(service, log), log)

	if err := bootstrap.Serve(ctx, router, cfg.HTTPPort, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("Search service stopped")
}

// purgeTombstones limpia periódicamente los tombstones caducados; Postgres no tiene índice TTL.
func purgeTombstones(ctx context.Context, repo *searchPostgres.SearchRepoPostgres, log *zap.Logger) {
	ticker := time.NewTicker(tombstonePurgeTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeTombstones(ctx, time.Now().UTC())
			if err != nil {
				log.Warn("Tombstone purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("Expired tombstones purged", zap.Int64("count", n))
			}
		}
	}
}
