package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	config "github.com/davicafu/postmesh/internal/config"
	postApp "github.com/davicafu/postmesh/internal/post/application"
	postDomain "github.com/davicafu/postmesh/internal/post/domain"
	postHttp "github.com/davicafu/postmesh/internal/post/infra/inbound/http"
	postMemory "github.com/davicafu/postmesh/internal/post/infra/outbound/db/memory"
	postMongo "github.com/davicafu/postmesh/internal/post/infra/outbound/db/mongodb"
	postSQLite "github.com/davicafu/postmesh/internal/post/infra/outbound/db/sqlite"
	"github.com/davicafu/postmesh/internal/shared/infra/bootstrap"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	sharedBus "github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
	"github.com/davicafu/postmesh/pkg/logger"

	_ "modernc.org/sqlite"
)

const serviceName = "post-service"

func main() {
	cfg := config.LoadConfig(serviceName)
	logger.Init(serviceName, cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- DB ----------------
	var repo postDomain.PostRepository
	switch cfg.PostStore {
	case "mongo":
		client, err := bootstrap.ConnectMongo(ctx, cfg)
		if err != nil {
			log.Fatal("MongoDB connection error", zap.Error(err))
		}
		defer client.Disconnect(context.Background())

		repo, err = postMongo.NewPostRepoMongoDB(ctx, client, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("failed to initialize post store", zap.Error(err))
		}
		log.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()

		if err := postSQLite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		repo = postSQLite.NewPostRepoSQLite(db)
	case "memory":
		log.Warn("Using in-memory post store")
		repo = postMemory.NewInMemoryPostRepo()
	default:
		log.Fatal("unknown post store", zap.String("store", cfg.PostStore))
	}

	// ---------------- Cache ----------------
	cache, rdb := bootstrap.NewCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// ---------------- Events ---------------
	eventBus, err := bootstrap.NewBus(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create event bus", zap.Error(err))
	}
	defer eventBus.Close()
	emitter := sharedBus.NewEmitter(eventBus, cfg.PublishTimeout, log)

	// --------------- Servicio --------------
	service := postApp.NewPostService(
		repo,
		bootstrap.NewReadThrough(cache, cfg, log),
		emitter,
		postApp.CacheTTLs{Item: cfg.ItemCacheTTL, List: cfg.ListCacheTTL},
		cfg.CacheOpTimeout,
		log,
	)

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(bootstrap.NewLimiter(rdb, "ratelimit:post:", cfg.RateLimit, cfg.RateLimitWindow), log)
	router.Use(sharedHTTP.Timeout(cfg.StoreTimeout))
	postHttp.RegisterPostRoutes(router, postHttp.NewPostHandler(service, log), log)

	if err := bootstrap.Serve(ctx, router, cfg.HTTPPort, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("Post service stopped")
}
