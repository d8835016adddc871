// Package main runs the background import worker: queued uploads are read from S3 and written in batches.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gbp-politico/backend/config"
	"github.com/gbp-politico/backend/internal/eleitores"
	"github.com/gbp-politico/backend/internal/imports"
	"github.com/gbp-politico/backend/internal/realtime"
	"github.com/gbp-politico/backend/internal/uploadhistory"
	"github.com/gbp-politico/backend/internal/worker"
	"github.com/gbp-politico/backend/pkg/database"
	"github.com/gbp-politico/backend/pkg/queue"
	"github.com/gbp-politico/backend/pkg/redis"
	"github.com/gbp-politico/backend/pkg/storage"
)

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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ImportsBucket:        cfg.AWS.ImportsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	// Events are published only; API instances relay them to their sockets.
	hub := realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger), nil)
	reporter := realtime.NewReporter(hub)

	importService := imports.NewService(
		uploadhistory.NewRepository(pool),
		eleitores.NewRepository(pool),
		reporter,
		imports.Config{
			BatchSize:   cfg.Import.BatchSize,
			PreviewRows: cfg.Import.PreviewRows,
			Atomic:      cfg.Import.Atomic,
			Strict:      cfg.Import.StrictNumbers,
			StaleAfter:  cfg.Import.StaleAfter,
		},
		logger,
	)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewImportProcessor(importService, s3Client, jobQueue, logger)

	logger.Info("worker started")
	if err := processor.Run(ctx); err != nil {
		logger.Error("worker", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
