// Package main runs the GBP API server: auth, eleitor imports, realtime progress and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/gbp-politico/backend/config"
	"github.com/gbp-politico/backend/internal/archive"
	"github.com/gbp-politico/backend/internal/auth"
	"github.com/gbp-politico/backend/internal/eleitores"
	"github.com/gbp-politico/backend/internal/empresas"
	"github.com/gbp-politico/backend/internal/imports"
	"github.com/gbp-politico/backend/internal/middleware"
	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/internal/realtime"
	"github.com/gbp-politico/backend/internal/uploadhistory"
	"github.com/gbp-politico/backend/internal/worker"
	"github.com/gbp-politico/backend/pkg/database"
	"github.com/gbp-politico/backend/pkg/queue"
	"github.com/gbp-politico/backend/pkg/redis"
	"github.com/gbp-politico/backend/pkg/response"
	"github.com/gbp-politico/backend/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Without Redis the hub stays local to this instance and imports are written synchronously.
	var (
		rdb      *redis.Client
		jobQueue *queue.Queue
		hub      *realtime.Hub
	)
	rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis disabled", zap.Error(err))
		rdb = nil
		hub = realtime.NewHub(logger, nil, nil)
	} else {
		defer rdb.Close()
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImportsBucket:        cfg.AWS.ImportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	// Optional collaborators stay untyped nil when missing.
	var (
		sources imports.SourceStore
		jobs    imports.JobQueue
	)
	if s3Client != nil {
		sources = s3Client
	}
	if jobQueue != nil {
		jobs = jobQueue
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	reporter := realtime.NewReporter(hub)

	// Auth
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, jwtService, logger)
	empresaRepo := empresas.NewRepository(pool)

	// Imports
	historyRepo := uploadhistory.NewRepository(pool)
	eleitorRepo := eleitores.NewRepository(pool)
	deletedRepo := eleitores.NewDeletedRepository(pool)
	importService := imports.NewService(historyRepo, eleitorRepo, reporter, imports.Config{
		BatchSize:   cfg.Import.BatchSize,
		PreviewRows: cfg.Import.PreviewRows,
		Atomic:      cfg.Import.Atomic,
		Strict:      cfg.Import.StrictNumbers,
		StaleAfter:  cfg.Import.StaleAfter,
	}, logger)
	archiveService := archive.NewService(historyRepo, eleitorRepo, deletedRepo, reporter, logger)
	importHandler := imports.NewHandler(importService, archiveService, sources, jobs, imports.HandlerConfig{
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		Async:          cfg.Import.Async,
	}, logger)

	authenticate := empresas.ActiveSocket(empresaRepo, func(_ context.Context, token string) (realtime.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return realtime.Identity{}, err
		}
		return realtime.Identity{UserID: claims.UserID, EmpresaID: claims.EmpresaID, Role: claims.NivelAcesso}, nil
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", health(pool, rdb))

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), empresas.RequireActiveEmpresa(empresaRepo, logger))
	{
		api.GET("/me", authHandler.Me)

		importGroup := api.Group("/imports", middleware.RequireRole(middleware.ImportRoles...))
		importGroup.GET("/template", importHandler.Template)
		importGroup.POST("/preview", importHandler.Preview)
		importGroup.POST("", importHandler.Create)
		importGroup.GET("", importHandler.List)
		importGroup.GET("/:id", importHandler.Get)
		importGroup.GET("/:id/file", importHandler.Download)
		importGroup.DELETE("/:id", importHandler.Delete)
		importGroup.POST("/:id/hide", importHandler.Hide)
	}

	// WebSocket (token in query; common users get no import events)
	router.GET("/ws", realtime.ServeWs(hub, realtime.NewUpgrader(cfg.Server.CORSAllowedOrigins), logger, authenticate, string(models.NivelComum)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Embedded worker for single-process deployments
	if cfg.Worker.Embedded && s3Client != nil && jobQueue != nil {
		processor := worker.NewImportProcessor(importService, s3Client, jobQueue, logger)
		g.Go(func() error {
			logger.Info("import worker started")
			return processor.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server", zap.Error(err))
	}
	logger.Info("server stopped")
}

func health(pool *pgxpool.Pool, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
		if err := pool.Ping(ctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if rdb != nil {
			if err := rdb.Check(ctx); err != nil {
				response.ServiceUnavailable(c, "redis unavailable")
				return
			}
			status["redis"] = "ok"
		}
		response.OK(c, status)
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
