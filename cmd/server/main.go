// Package main runs the media platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mediavault/backend/config"
	"github.com/mediavault/backend/internal/analytics"
	"github.com/mediavault/backend/internal/auth"
	"github.com/mediavault/backend/internal/media"
	"github.com/mediavault/backend/internal/middleware"
	"github.com/mediavault/backend/internal/realtime"
	"github.com/mediavault/backend/internal/signedurl"
	"github.com/mediavault/backend/internal/views"
	"github.com/mediavault/backend/pkg/database"
	"github.com/mediavault/backend/pkg/redis"
	"github.com/mediavault/backend/pkg/response"
	"github.com/mediavault/backend/pkg/storage"
)

const (
	shutdownTimeout = 15 * time.Second
	healthTimeout   = 2 * time.Second
)

// blobStore is a storage backend that can report its own health.
type blobStore interface {
	storage.Blob
	Health(ctx context.Context) error
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Server.StoreTimeout(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is an accelerator: the service starts and stays correct without it.
	rdb, err := redis.NewClient(redis.Options{
		URL:         cfg.Redis.URL,
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout(),
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.Redis.DialTimeout()+time.Second)
	redisUp := rdb.Check(pingCtx) == nil
	cancelPing()
	if !redisUp {
		logger.Warn("redis unreachable at startup; analytics cache degrades to recomputation, live feed is instance-local")
	}

	blob, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	var cache analytics.Cache = analytics.NopCache{}
	if cfg.Cache.Enabled {
		cache = analytics.NewRedisCache(rdb, analytics.RedisCacheOptions{
			TTL:       cfg.Cache.TTL(),
			OpTimeout: cfg.Cache.OpTimeout(),
		}, logger)
	} else {
		logger.Info("analytics cache disabled")
	}

	var hub *realtime.Hub
	if redisUp {
		pubsub := realtime.NewRedisPubSub(rdb, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}
	defer hub.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpireMinutes)*time.Minute)
	signer := signedurl.NewSigner(cfg.Stream.SigningSecret, cfg.Stream.LinkTTL(), cfg.Server.BaseExternalURL)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// View log and analytics
	mediaRepo := media.NewRepository(pool)
	viewRepo := views.NewRepository(pool)
	engine := analytics.NewEngine(mediaRepo, viewRepo, cache, logger, analytics.Options{
		StoreTimeout: cfg.Server.StoreTimeout(),
	})
	engine.SetNotifier(hub)
	analyticsHandler := analytics.NewHandler(engine, logger)
	viewsHandler := views.NewHandler(viewRepo, mediaRepo, cfg.Server.StoreTimeout(), logger)

	// Media
	mediaHandler := media.NewHandler(mediaRepo, blob, signer, engine, media.Options{
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
		StoreTimeout:   cfg.Server.StoreTimeout(),
	}, logger)
	liveHandler := realtime.NewHandler(hub, mediaRepo, cfg.Server.CORSAllowedOrigins, logger)

	viewLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window())
	defer viewLimiter.Stop()

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.ProxyList()); err != nil {
		logger.Fatal("trusted proxies", zap.Error(err))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/", func(c *gin.Context) {
		response.OK(c, gin.H{"service": "mediavault", "status": "running"})
	})
	router.GET("/health", healthHandler(pool, engine, blob))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
	}

	// Streaming: authorized by the signed link alone
	router.GET("/media/stream/:id", mediaHandler.Stream)

	// Live view feed (browser WebSocket cannot set headers; token in query)
	router.GET("/media/:id/live", middleware.JWTQuery(jwtService, "token"), liveHandler.Serve(middleware.AdminID))

	// Protected API (JWT required)
	api := router.Group("/media")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/", mediaHandler.Upload)
		api.GET("/", mediaHandler.List)
		api.GET("/:id", mediaHandler.Get)
		api.DELETE("/:id", mediaHandler.Delete)
		api.GET("/:id/stream-url", mediaHandler.StreamURL)
		api.POST("/:id/view", viewLimiter.Middleware(), analyticsHandler.LogView)
		api.GET("/:id/analytics", analyticsHandler.Get)
		api.GET("/:id/views", viewsHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Backend),
			zap.Bool("cache_enabled", cfg.Cache.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (blobStore, error) {
	if cfg.Storage.Backend == "s3" {
		return storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.MediaBucket,
			Endpoint:        cfg.AWS.Endpoint,
		}, logger)
	}
	return storage.NewLocal(cfg.Storage.Dir, logger)
}

// healthHandler reports database, cache and storage status. Only a database
// failure makes the service unhealthy; the cache is optional.
func healthHandler(pool *pgxpool.Pool, engine *analytics.Engine, blob blobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		dbStatus := "healthy"
		if err := pool.Ping(ctx); err != nil {
			dbStatus = "error"
		}
		storageStatus := "healthy"
		if err := blob.Health(ctx); err != nil {
			storageStatus = "error"
		}
		body := gin.H{
			"database": dbStatus,
			"cache":    engine.CacheStatus(ctx),
			"storage":  storageStatus,
			"time":     time.Now().UTC(),
		}
		if dbStatus != "healthy" {
			body["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Data: body, Error: "database unavailable"})
			return
		}
		body["status"] = "ok"
		response.OK(c, body)
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
