package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/CrewImport/internal/config"
	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/logging"
	"github.com/JonMunkholm/CrewImport/internal/store"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:          "importctl",
		Short:        "Crew and certificate spreadsheet import tools",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, "text"))
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newTemplateCmd(),
		newValidateCmd(),
		newImportCmd(),
		newMigrateCmd(),
	)
	return cmd
}

// connect loads configuration from the environment and opens the store.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	if err := disableHTTPAuth(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// disableHTTPAuth turns off bearer auth unless AUTH_REQUIRED is set. The CLI
// serves no routes, so it should not need AUTH_JWT_SECRET.
func disableHTTPAuth() error {
	if _, ok := os.LookupEnv("AUTH_REQUIRED"); ok {
		return nil
	}
	return os.Setenv("AUTH_REQUIRED", "false")
}

func newService(cfg *config.Config, pool *pgxpool.Pool) *core.Service {
	return core.NewService(store.New(pool), core.Options{
		ValidateWorkers:      cfg.Import.ValidateWorkers,
		CheckBatchDuplicates: cfg.Import.CheckBatchDuplicates,
		PreviewRows:          cfg.Import.PreviewRows,
		Timeout:              cfg.Import.Timeout,
	})
}

func readInput(path string, maxSize int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%s: file too large (%d bytes, limit %d)", path, info.Size(), maxSize)
	}
	return os.ReadFile(path)
}
