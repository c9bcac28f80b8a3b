package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheetdiff/internal/config"
	"github.com/JonMunkholm/sheetdiff/internal/core"
	"github.com/JonMunkholm/sheetdiff/internal/logging"
	"github.com/JonMunkholm/sheetdiff/internal/sheet"
	"github.com/JonMunkholm/sheetdiff/internal/web"
)

func main() {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	loader := sheet.Loader{
		Sheet:    cfg.Compare.Sheet,
		MaxBytes: cfg.Compare.MaxFileSize,
	}
	service := core.NewService(loader, cfg.Compare)
	server := web.NewServer(service, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then let running comparisons finish.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for comparisons to complete", "active", status.Active)
			if err := service.WaitForComparisons(shutdownCtx); err != nil {
				slog.Warn("comparisons did not complete in time", "error", err)
			} else {
				slog.Info("all comparisons completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
