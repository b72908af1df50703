package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appreports "github.com/storefront/analytics/internal/application/reports"
	"github.com/storefront/analytics/internal/domain/reports"
	"github.com/storefront/analytics/internal/infrastructure/auth"
	"github.com/storefront/analytics/internal/infrastructure/cache"
	"github.com/storefront/analytics/internal/infrastructure/config"
	"github.com/storefront/analytics/internal/infrastructure/logger"
	"github.com/storefront/analytics/internal/infrastructure/persistence"
	"github.com/storefront/analytics/internal/infrastructure/queue"
	"github.com/storefront/analytics/internal/infrastructure/scheduler"
	"github.com/storefront/analytics/internal/interfaces/http/handler"
	"github.com/storefront/analytics/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront analytics",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Task queue and worker
	taskQueue := queue.NewGormTaskQueue(db.DB, queue.GormQueueConfig{
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	})

	worker, err := queue.NewWorker(taskQueue, queue.WorkerConfig{
		PollInterval:   cfg.Queue.PollInterval,
		ClaimBatchSize: cfg.Queue.ClaimBatchSize,
		JobTimeout:     cfg.Queue.JobTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create queue worker", zap.Error(err))
	}

	// Report pipeline
	batches, err := scheduler.NewBatchScheduler(taskQueue, scheduler.BatchSchedulerConfig{
		MaxJobsPerDispatch: cfg.Reports.MaxJobsPerDispatch,
		ScheduleDelay:      cfg.Reports.ScheduleDelay,
	}, log)
	if err != nil {
		log.Fatal("Failed to create batch scheduler", zap.Error(err))
	}
	chainer := scheduler.NewDependentActionChainer(taskQueue, cfg.Reports.ScheduleDelay, log)

	lookupRepo := persistence.NewGormLookupRepository(db.DB)
	orderSync := persistence.NewGormOrderSyncRepository(db.DB, log)
	customerSync := persistence.NewGormCustomerSyncRepository(db.DB, log)

	orchestrator := appreports.NewSyncOrchestrator(
		taskQueue, batches, chainer,
		lookupRepo, orderSync, customerSync,
		appreports.SyncConfig{
			BatchSize:     cfg.Reports.BatchSize,
			ScheduleDelay: cfg.Reports.ScheduleDelay,
		},
		log,
	)
	orchestrator.RegisterHandlers(worker)

	// Report read path, with the dimension universe cached in Redis when
	// Redis is reachable.
	var dimensions reports.DimensionRepository = persistence.NewGormDimensionRepository(db.DB)
	dimensionCache, err := cache.NewRedisDimensionCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, dimensions, cfg.Reports.DimensionCacheTTL, log)
	if err != nil {
		log.Warn("Redis unavailable, serving dimensions without cache", zap.Error(err))
	} else {
		dimensions = dimensionCache
		defer func() {
			_ = dimensionCache.Close()
		}()
	}

	statsRepo := persistence.NewGormStatsRepository(db.DB, cfg.Reports.WeekStartsOn)
	reportService := appreports.NewReportService(statsRepo, dimensions, appreports.ReportServiceConfig{
		WeekStartsOn:   cfg.Reports.WeekStartsOn,
		DefaultPerPage: cfg.Reports.DefaultPerPage,
	}, log)

	if cfg.Queue.WorkerEnabled {
		if err := worker.Start(context.Background()); err != nil {
			log.Fatal("Failed to start queue worker", zap.Error(err))
		}
		log.Info("Queue worker started",
			zap.Duration("poll_interval", cfg.Queue.PollInterval),
			zap.Strings("hooks", worker.Hooks()),
		)
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	engine := router.New(router.Dependencies{
		Config:        cfg,
		Logger:        log,
		JWTService:    jwtService,
		SystemHandler: handler.NewSystemHandler(db),
		Reports:       handler.NewReportsHandler(orchestrator, reportService, taskQueue, log),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Queue.WorkerEnabled {
		if err := worker.Stop(ctx); err != nil {
			log.Error("Queue worker shutdown failed", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
