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

	"github.com/JonMunkholm/CrewImport/internal/config"
	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/logging"
	"github.com/JonMunkholm/CrewImport/internal/store"
	"github.com/JonMunkholm/CrewImport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	pool, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		version, err := store.Migrate(ctx, pool)
		if err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		slog.Info("database schema ready", "version", version)
	}

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	service := core.NewService(store.New(pool), core.Options{
		ValidateWorkers:      cfg.Import.ValidateWorkers,
		CheckBatchDuplicates: cfg.Import.CheckBatchDuplicates,
		PreviewRows:          cfg.Import.PreviewRows,
		Timeout:              cfg.Import.Timeout,
		Limiter:              limiter,
	})

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := shutdown(shutdownCtx, server, limiter); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

type httpServer interface {
	Shutdown(ctx context.Context) error
}

type importDrainer interface {
	Status() core.LimiterStatus
	WaitForDrain(ctx context.Context) error
}

// shutdown stops accepting requests, then waits for running imports to commit
// before the pool closes.
func shutdown(ctx context.Context, srv httpServer, imports importDrainer) error {
	shutdownErr := srv.Shutdown(ctx)

	if status := imports.Status(); status.Active > 0 {
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := imports.WaitForDrain(ctx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
			return errors.Join(shutdownErr, err)
		}
		slog.Info("all imports completed")
	}
	return shutdownErr
}
