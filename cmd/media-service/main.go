package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	config "github.com/davicafu/postmesh/internal/config"
	mediaApp "github.com/davicafu/postmesh/internal/media/application"
	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
	mediaEvents "github.com/davicafu/postmesh/internal/media/infra/inbound/events"
	mediaHttp "github.com/davicafu/postmesh/internal/media/infra/inbound/http"
	"github.com/davicafu/postmesh/internal/media/infra/outbound/blob/filesystem"
	"github.com/davicafu/postmesh/internal/media/infra/outbound/blob/gridfs"
	mediaMemory "github.com/davicafu/postmesh/internal/media/infra/outbound/db/memory"
	mediaMongo "github.com/davicafu/postmesh/internal/media/infra/outbound/db/mongodb"
	"github.com/davicafu/postmesh/internal/shared/infra/bootstrap"
	"github.com/davicafu/postmesh/pkg/logger"
)

const (
	serviceName = "media-service"
	gridfsName  = "media"
)

func main() {
	cfg := config.LoadConfig(serviceName)
	logger.Init(serviceName, cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- DB ----------------
	var client *mongo.Client
	if cfg.MediaStore == "mongo" || cfg.MediaBlob == "gridfs" {
		var err error
		client, err = bootstrap.ConnectMongo(ctx, cfg)
		if err != nil {
			log.Fatal("MongoDB connection error", zap.Error(err))
		}
		defer client.Disconnect(context.Background())
		log.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	}

	var repo mediaDomain.MediaRepository
	switch cfg.MediaStore {
	case "mongo":
		var err error
		repo, err = mediaMongo.NewMediaRepoMongoDB(ctx, client, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("failed to initialize media store", zap.Error(err))
		}
	case "memory":
		log.Warn("Using in-memory media store")
		repo = mediaMemory.NewInMemoryMediaRepo()
	default:
		log.Fatal("unknown media store", zap.String("store", cfg.MediaStore))
	}

	// ---------------- Blobs ----------------
	var blobs mediaDomain.BlobStorage
	switch cfg.MediaBlob {
	case "gridfs":
		var err error
		blobs, err = gridfs.NewGridFSBlobStorage(client.Database(cfg.MongoDatabase), gridfsName, cfg.MediaBaseURL)
		if err != nil {
			log.Fatal("failed to open blob storage", zap.Error(err))
		}
	case "filesystem":
		var err error
		blobs, err = filesystem.NewFSBlobStorage(cfg.BlobDir, cfg.MediaBaseURL)
		if err != nil {
			log.Fatal("failed to open blob storage", zap.Error(err))
		}
	default:
		log.Fatal("unknown blob storage", zap.String("blob", cfg.MediaBlob))
	}

	// ---------------- Cache ----------------
	cache, rdb := bootstrap.NewCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// --------------- Servicio --------------
	service := mediaApp.NewMediaService(repo, blobs, bootstrap.NewReadThrough(cache, cfg, log), cfg.ListCacheTTL, cfg.CacheOpTimeout, log)

	// ---------------- Events ---------------
	eventBus, err := bootstrap.NewBus(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create event bus", zap.Error(err))
	}
	defer eventBus.Close()

	sub, err := mediaEvents.NewMediaConsumer(service, log).Subscribe(ctx, eventBus)
	if err != nil {
		log.Fatal("failed to subscribe to post.deleted", zap.Error(err))
	}
	defer sub.Unsubscribe()

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(bootstrap.NewLimiter(rdb, "ratelimit:media:", cfg.RateLimit, cfg.RateLimitWindow), log)
	mediaHttp.RegisterMediaRoutes(router, mediaHttp.NewMediaHandler(service, log), log)
	if cfg.MediaBlob == "filesystem" {
		router.StaticFS("/files", gin.Dir(cfg.BlobDir, false))
	}

	if err := bootstrap.Serve(ctx, router, cfg.HTTPPort, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("Media service stopped")
}
