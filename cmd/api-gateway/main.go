package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	config "github.com/davicafu/postmesh/internal/config"
	gatewayHttp "github.com/davicafu/postmesh/internal/gateway/infra/inbound/http"
	"github.com/davicafu/postmesh/internal/gateway/infra/outbound/jwt"
	"github.com/davicafu/postmesh/internal/shared/infra/bootstrap"
	"github.com/davicafu/postmesh/pkg/logger"
)

const serviceName = "api-gateway"

func main() {
	cfg := config.LoadConfig(serviceName)
	logger.Init(serviceName, cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := jwt.NewHS256Verifier(cfg.JWTSecret)
	if err != nil {
		log.Fatal("invalid JWT configuration", zap.Error(err))
	}

	// ---------------- Cache ----------------
	// El gateway sólo usa Redis para el rate limit compartido.
	_, rdb := bootstrap.NewCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(bootstrap.NewLimiter(rdb, "ratelimit:gateway:", cfg.GatewayRateLimit, cfg.RateLimitWindow), log)
	err = gatewayHttp.RegisterGatewayRoutes(router, gatewayHttp.Upstreams{
		User:      cfg.UserServiceURL,
		Post:      cfg.PostServiceURL,
		Media:     cfg.MediaServiceURL,
		Search:    cfg.SearchServiceURL,
		Analytics: cfg.AnalyticsServiceURL,
	}, verifier, log)
	if err != nil {
		log.Fatal("failed to register proxy routes", zap.Error(err))
	}

	if err := bootstrap.Serve(ctx, router, cfg.HTTPPort, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("API gateway stopped")
}
