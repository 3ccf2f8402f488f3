package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexchuang650730/aicore0624-sub006/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and, when REDIS_ENABLED is set, the Redis Streams worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := a.logger
	cfg := a.cfg

	logger.Info("starting expert router",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)

	var redisClient *redis.Client
	var w *worker.Worker
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		// Test Redis connection
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = redisClient.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

		w = worker.NewWorker(cfg, redisClient, a.orchestrator, logger)
		if err := w.Start(); err != nil {
			_ = redisClient.Close()
			return fmt.Errorf("failed to start worker: %w", err)
		}
	} else {
		logger.Info("redis disabled, serving http only")
	}

	httpServer := worker.NewHTTPServer(cfg.HTTPPort, redisClient, a.orchestrator, a.registry, logger)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	// Wait for shutdown signal
	sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("expert router running, press Ctrl+C to stop")
	<-sigCtx.Done()

	logger.Info("shutdown signal received, stopping")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(); err != nil {
		logger.Error("failed to stop http server", zap.Error(err))
	}

	if w != nil {
		if err := w.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop worker", zap.Error(err))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis connection", zap.Error(err))
		}
	}

	a.close(shutdownCtx)
	return nil
}
