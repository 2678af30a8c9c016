package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	config "github.com/davicafu/postmesh/internal/config"
	"github.com/davicafu/postmesh/internal/shared/infra/bootstrap"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	userApp "github.com/davicafu/postmesh/internal/user/application"
	userDomain "github.com/davicafu/postmesh/internal/user/domain"
	userHttp "github.com/davicafu/postmesh/internal/user/infra/inbound/http"
	userMemory "github.com/davicafu/postmesh/internal/user/infra/outbound/db/memory"
	userPostgres "github.com/davicafu/postmesh/internal/user/infra/outbound/db/postgres"
	userSQLite "github.com/davicafu/postmesh/internal/user/infra/outbound/db/sqlite"
	"github.com/davicafu/postmesh/internal/user/infra/outbound/security"
	"github.com/davicafu/postmesh/pkg/logger"
)

const serviceName = "user-service"

// userStore agrupa los dos puertos; todos los adaptadores implementan ambos.
type userStore interface {
	userDomain.UserRepository
	userDomain.RefreshTokenRepository
}

func main() {
	cfg := config.LoadConfig(serviceName)
	logger.Init(serviceName, cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := security.NewJWTIssuer(cfg.JWTSecret)
	if err != nil {
		log.Fatal("invalid JWT configuration", zap.Error(err))
	}

	// ---------------- DB ----------------
	var store userStore
	switch cfg.UserStore {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()

		if err := userSQLite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		store = userSQLite.NewUserRepoSQLite(db)
	case "postgres":
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := userPostgres.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		store = userPostgres.NewUserRepoPostgres(db)
	case "memory":
		log.Warn("Using in-memory user store")
		store = userMemory.NewInMemoryUserRepo()
	default:
		log.Fatal("unknown user store", zap.String("store", cfg.UserStore))
	}

	// ---------------- Cache ----------------
	// Redis sólo respalda los límites de peticiones.
	_, rdb := bootstrap.NewCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// --------------- Servicio --------------
	service := userApp.NewUserService(store, store, security.NewBcryptHasher(cfg.BcryptCost), issuer,
		userApp.TokenTTLs{Access: cfg.AccessTokenTTL, Refresh: cfg.RefreshTokenTTL}, log)

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(bootstrap.NewLimiter(rdb, "ratelimit:user:", cfg.RateLimit, cfg.RateLimitWindow), log)
	router.Use(sharedHTTP.Timeout(cfg.StoreTimeout))
	userHttp.RegisterUserRoutes(router, userHttp.NewUserHandler(service, log),
		bootstrap.NewLimiter(rdb, "ratelimit:register:", cfg.RegisterRateLimit, cfg.RateLimitWindow), log)

	if err := bootstrap.Serve(ctx, router, cfg.HTTPPort, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("User service stopped")
}
