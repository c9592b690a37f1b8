package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/brightframe/studioops/internal/application/dispatcher"
	"github.com/brightframe/studioops/internal/application/service"
	"github.com/brightframe/studioops/internal/config"
	"github.com/brightframe/studioops/internal/infrastructure/directory"
	"github.com/brightframe/studioops/internal/infrastructure/persistence/repository"
	"github.com/brightframe/studioops/internal/infrastructure/worker"
	httpserver "github.com/brightframe/studioops/internal/interfaces/http"
	"github.com/brightframe/studioops/internal/notifier"
	"github.com/brightframe/studioops/pkg/database"
	"github.com/brightframe/studioops/pkg/utils"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting StudioOps task service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	kvLogger := utils.NewKVLogger(logger)

	taskRepo := repository.NewTaskRepository(db.DB, logger)
	dir := directory.New(db.DB, logger)

	disp := dispatcher.New(dispatcher.WithLogger(kvLogger))
	defer disp.Close()

	webhookNotifier := notifier.New(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout, logger)
	webhookNotifier.Register(disp)

	taskService := service.NewTaskService(taskRepo, dir, disp, kvLogger)

	deadlineWorker := worker.NewDeadlineWorker(worker.DeadlineWorkerConfig{
		SweepInterval:     cfg.Sweeper.SweepInterval,
		ApproachingWindow: cfg.Sweeper.ApproachingWindow,
	}, taskRepo, disp, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := deadlineWorker.Start(ctx); err != nil {
		logger.Fatal("Failed to start deadline worker", zap.Error(err))
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, taskService, kvLogger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	deadlineWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}
