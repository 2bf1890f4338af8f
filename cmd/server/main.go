package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	h "github.com/veranemoloko/download-resolver/internal/api/http"
	cfgpkg "github.com/veranemoloko/download-resolver/internal/config"
	"github.com/veranemoloko/download-resolver/internal/history"
	"github.com/veranemoloko/download-resolver/internal/policy"
	repo "github.com/veranemoloko/download-resolver/internal/repository"
	"github.com/veranemoloko/download-resolver/internal/reservation"
	"github.com/veranemoloko/download-resolver/internal/resolver"
	svc "github.com/veranemoloko/download-resolver/internal/service"
	"github.com/veranemoloko/download-resolver/internal/storage"
	"github.com/veranemoloko/download-resolver/internal/worker"
)

func main() {

	cfg, err := cfgpkg.Load()
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			slog.Error("configuration file not found", "error", err)
		} else {
			slog.Error("failed to load configuration", "error", err)
		}
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully")
	logger := slog.Default()

	downloadStorage, err := repo.NewDownloadStorage(cfg.StateFile)
	if err != nil {
		slog.Error("failed to initialize download repository", "error", err)
		os.Exit(1)
	}

	historyStore, err := history.NewStore(cfg.HistoryFile, logger)
	if err != nil {
		slog.Error("failed to initialize history store", "error", err)
		os.Exit(1)
	}

	fileStorage := storage.NewFileStorage()
	tracker := reservation.NewTracker(logger)
	policies := policy.NewFileTypePolicies(cfg.AutoOpenExtensions)
	registry := resolver.NewRegistry(logger)
	downloadWorker := worker.NewDownloadWorker(fileStorage, cfg.WorkerPoolSize, cfg.MaxFileSize, cfg.DownloadTimeout, logger)

	downloadService := svc.NewDownloadService(
		cfg,
		downloadStorage,
		historyStore,
		tracker,
		policies,
		registry,
		downloadWorker,
		fileStorage,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go downloadWorker.Run(ctx)

	if err := downloadService.RecoverPendingDownloads(ctx); err != nil {
		slog.Error("failed to recover pending downloads", "error", err)
	}

	router := h.NewRouter(downloadService, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	if err := downloadService.Shutdown(shutdownCtx); err != nil {
		slog.Error("download service shutdown failed", "error", err)
	} else {
		slog.Info("server stopped gracefully")
	}
}
