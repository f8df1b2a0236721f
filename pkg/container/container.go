package container

import (
	"context"
	"fmt"
	"time"

	"asset-library-backend/internal/config"
	assetHandler "asset-library-backend/internal/domains/asset/handler"
	assetRepo "asset-library-backend/internal/domains/asset/repository"
	assetService "asset-library-backend/internal/domains/asset/service"
	userHandler "asset-library-backend/internal/domains/author/handler"
	userService "asset-library-backend/internal/domains/author/service"
	"asset-library-backend/internal/infrastructure/archive"
	infraCache "asset-library-backend/internal/infrastructure/cache"
	"asset-library-backend/internal/infrastructure/database"
	"asset-library-backend/internal/infrastructure/queue"
	"asset-library-backend/internal/infrastructure/storage"
	"asset-library-backend/pkg/cache"
	"asset-library-backend/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every long-lived dependency of the API and the worker.
// Build order: config, store, infrastructure, services, handlers.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config   *config.Config
	DB       *database.PostgresDB // nil with the memory store
	Redis    *infraCache.RedisClient
	Cache    cache.Cache
	Storage  *storage.MinIOStorage
	Queue    *queue.Client
	RedisOpt asynq.RedisClientOpt

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	Store assetRepo.Store

	// ========================================
	// SERVICE LAYER
	// ========================================
	AssetService assetService.ServiceInterface
	UserService  userService.ServiceInterface

	// ========================================
	// HANDLER LAYER
	// ========================================
	AssetHandler *assetHandler.Handler
	UserHandler  *userHandler.UserHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer loads the config and wires the dependency graph.
// On error every resource opened so far is released.
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.App.Environment)

	log.Info().
		Str("environment", cfg.App.Environment).
		Str("store", cfg.Store.Driver).
		Msg("initializing container")

	c := &Container{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			c.Cleanup()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.initStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	if err := c.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	c.initServices()
	c.initHandlers()

	ok = true
	log.Info().Msg("container initialized")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initStore(ctx context.Context) error {
	if c.Config.Store.Driver == config.StoreDriverMemory {
		log.Warn().Msg("using the in-memory store, data is lost on restart")
		c.Store = assetRepo.NewMemoryStore()
		return nil
	}

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if c.Config.Store.AutoMigrate {
		if err := database.Migrate(ctx, db.Pool); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	c.Store = assetRepo.NewPostgresStore(db.Pool)
	return nil
}

func (c *Container) initInfrastructure(ctx context.Context) error {
	cfg := c.Config

	// Redis backs the thumbnail cache and the task queue. The API still
	// serves reads without it, so a failed ping is only logged.
	c.Redis = infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Redis.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, caching and archive jobs degraded")
	}
	c.Cache = infraCache.NewRedisCache(c.Redis.Client, "assets:")

	c.RedisOpt = asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	c.Queue = queue.NewClient(c.RedisOpt)

	minio, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to init minio: %w", err)
	}
	c.Storage = minio

	return nil
}

func (c *Container) initServices() {
	cfg := c.Config

	c.AssetService = assetService.NewAssetService(
		assetService.Deps{
			Store:      c.Store,
			Blobs:      c.Storage,
			Archiver:   archive.NewZipBuilder(),
			Thumbnails: storage.NewThumbnailProcessor(cfg.Asset.ThumbnailMaxSide),
			Queue:      c.Queue,
			Cache:      c.Cache,
		},
		assetService.Config{
			ThumbnailCacheTTL:  cfg.Asset.ThumbnailCacheTTL,
			UploadConcurrency:  cfg.Asset.UploadConcurrency,
			RecentCommitsLimit: cfg.Asset.RecentCommitsLimit,
		},
	)

	c.UserService = userService.NewUserService(c.Store, cfg.Asset.RecentCommitsLimit)
}

func (c *Container) initHandlers() {
	c.AssetHandler = assetHandler.NewHandler(c.AssetService, c.Config.Asset.MaxUploadSizeBytes)
	c.UserHandler = userHandler.NewUserHandler(c.UserService)
}

// ========================================
// HEALTH & CLEANUP
// ========================================

// HealthCheck pings every backing service; the map holds "ok" or the error.
func (c *Container) HealthCheck(ctx context.Context) (map[string]string, bool) {
	checks := map[string]func(context.Context) error{
		"store": c.Store.Ping,
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.HealthCheck
	}
	if c.Storage != nil {
		checks["minio"] = c.Storage.HealthCheck
	}

	status := make(map[string]string, len(checks))
	healthy := true
	for name, check := range checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	return status, healthy
}

// Cleanup releases connections. Safe on a partially built container.
func (c *Container) Cleanup() {
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close queue client")
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
	log.Info().Msg("container cleanup completed")
}
