package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marovole/HearthBulter/internal/api"
	"github.com/marovole/HearthBulter/internal/buffer"
	"github.com/marovole/HearthBulter/internal/config"
	"github.com/marovole/HearthBulter/internal/diff"
	"github.com/marovole/HearthBulter/internal/metrics"
	"github.com/marovole/HearthBulter/internal/model"
	"github.com/marovole/HearthBulter/internal/repository"
	"github.com/marovole/HearthBulter/internal/service"
	"github.com/marovole/HearthBulter/pkg/logger"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// Initialize logger
	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// 2. Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize Infrastructure
	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	etcdCli, err := initEtcd(cfg.Etcd)
	if err != nil {
		return err
	}
	defer etcdCli.Close()

	db, err := initDB(cfg.MySQL)
	if err != nil {
		return err
	}

	// 4. Initialize Repositories
	configRepo := repository.NewDualWriteConfigRepository(db)
	diffRepo := repository.NewDiffRecordRepository(db)
	notifyRepo := repository.NewConfigNotifyRepository(etcdCli)

	// 5. Initialize Services
	observer := metrics.NewPrometheusObserver()
	hub := service.NewHub(observer, cfg.Workers.HeartbeatInterval, cfg.Workers.StreamBufferSize)
	replay := buffer.NewReplayBuffer(cfg.Workers.StreamBufferSize)

	flagCache := service.NewFlagCache(cfg.DualWrite.FlagCacheTTL)
	flagSvc := service.NewFlagService(configRepo, notifyRepo, flagCache)
	if err := flagSvc.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed dual-write config: %w", err)
	}

	recorder := service.NewDiffRecorder(diffRepo, hub, replay)
	authSvc := service.NewAuthService(rdb, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	// The orchestrator is handed to the embedding application's backend
	// adapters; the server side owns its lifecycle so in-flight
	// comparisons drain on shutdown.
	orchestrator := service.NewOrchestrator(
		flagSvc,
		diff.NewEngine(cfg.DualWrite.MaxDiffDepth),
		diff.NewClassifier(classifierRules(cfg)),
		recorder,
		service.NewTaskPool(cfg.DualWrite.MaxComparisons),
		observer,
		cfg.DualWrite.AsyncLifetime,
	)

	// 6. Initialize & Start Workers (Background Tasks)
	retention := service.NewRetentionWorker(recorder, cfg.Workers.CleanupInterval, cfg.Workers.RetentionDays)

	go func() {
		logger.Info("starting retention worker")
		retention.Run(ctx)
	}()
	go func() {
		logger.Info("starting hub")
		hub.Run()
	}()
	go func() {
		logger.Info("starting flag config watcher")
		flagSvc.Run(ctx)
	}()

	// 7. Setup HTTP Server
	r := api.RegisterRoutes(
		api.NewDualWriteHandler(flagSvc, rdb),
		api.NewDiffHandler(recorder),
		api.NewStreamHandler(recorder, hub),
		api.NewAuthHandler(authSvc),
		rdb,
		cfg.RateLimit.RequestsPerSecond,
		cfg.Server.Environment,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	// 8. Start Server
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	// 9. Graceful Shutdown Signal Wait
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Signal all workers to stop
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Drain deferred comparisons so their records are not lost.
	orchestrator.Wait()

	logger.Info("server exited properly")
	return nil
}

func classifierRules(cfg *config.Config) map[string]diff.Rules {
	rules := make(map[string]diff.Rules, len(cfg.Classifier))
	for endpoint, rc := range cfg.Classifier {
		rules[endpoint] = diff.Rules{
			CriticalPaths: rc.Critical,
			VolatilePaths: rc.Volatile,
		}
	}
	return rules
}

// -- Infrastructure Initializers --

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func initEtcd(cfg config.EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}

func initDB(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	// Simple auto-migrate for dev convenience
	err = db.AutoMigrate(
		&model.DualWriteConfig{},
		&model.DiffRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
