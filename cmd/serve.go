// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/internal/observability"
	"github.com/tagprobe/tagprobe-cli/internal/scanner"
	"github.com/tagprobe/tagprobe-cli/internal/server"
	"github.com/tagprobe/tagprobe-cli/internal/store"
)

// newServeCmd creates the `serve` command hosting the HTTP API.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP API for scans and scheduled tasks",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlag("database.url", cmd.Flags().Lookup("database-url"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := getConfig()
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides to config: %w", err)
			}

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is not configured (TAGPROBE_DATABASE_URL)")
			}

			dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer dbPool.Close()

			dbStore, err := store.New(ctx, dbPool, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if err := dbStore.Bootstrap(ctx); err != nil {
				return fmt.Errorf("failed to bootstrap schema: %w", err)
			}

			runner := scanner.New(cfg, logger)
			srv := server.New(cfg.Server, cfg.Scan.TargetURL, runner, dbStore, logger)

			logger.Info("Starting TagProbe API server",
				zap.String("addr", cfg.Server.Addr),
				zap.String("default_target", cfg.Scan.TargetURL),
			)

			if err := srv.Start(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Server stopped by signal")
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	serveCmd.Flags().String("addr", "", "Listen address for the HTTP API. (Overrides config/env)")
	serveCmd.Flags().String("database-url", "", "PostgreSQL connection string. (Overrides config/env)")

	return serveCmd
}
