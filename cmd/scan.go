// File: cmd/scan.go
package cmd

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/observability"
	"github.com/tagprobe/tagprobe-cli/internal/scanner"
	"github.com/tagprobe/tagprobe-cli/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newScanCmd creates the `scan` command: a single scan run from the CLI,
// printed to stdout and optionally persisted.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [cookies|eventlog|analytics]",
		Short: "Runs one telemetry scan against the target page",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line flags correctly
			// override values from the config file and environment.
			if err := viper.BindPFlag("scan.target_url", cmd.Flags().Lookup("url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlag("database.url", cmd.Flags().Lookup("database-url"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			kind, err := schemas.ParseScanKind(args[0])
			if err != nil {
				return err
			}

			cfg := getConfig()
			// Re-unmarshal so the flag bindings from PreRunE take effect with
			// the right precedence.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides to config: %w", err)
			}

			logger.Info("Starting scan",
				zap.String("kind", string(kind)),
				zap.String("target", cfg.Scan.TargetURL),
			)

			runner := scanner.New(cfg, logger)
			result, err := runner.Run(ctx, kind, cfg.Scan.TargetURL)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if persist, _ := cmd.Flags().GetBool("save"); persist {
				if err := persistResult(cmd, cfg.Database.URL, result, logger); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("failed to encode scan result: %w", err)
			}
			return nil
		},
	}

	scanCmd.Flags().StringP("url", "u", "", "Target page URL. (Overrides config/env)")
	scanCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	scanCmd.Flags().Bool("save", false, "Persist the result to the configured database.")
	scanCmd.Flags().String("database-url", "", "PostgreSQL connection string, required with --save.")

	return scanCmd
}

// persistResult stores a finished scan when --save is set.
func persistResult(cmd *cobra.Command, databaseURL string, result *schemas.ScanResult, logger *zap.Logger) error {
	ctx := cmd.Context()

	if databaseURL == "" {
		return fmt.Errorf("--save requires a database URL (TAGPROBE_DATABASE_URL)")
	}
	dbPool, err := pgxpool.New(ctx, databaseURL)
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
	if err := dbStore.SaveScan(ctx, result); err != nil {
		return fmt.Errorf("failed to persist scan result: %w", err)
	}

	logger.Info("Scan result persisted", zap.String("scan_id", result.ID), zap.String("kind", string(result.Kind)))
	return nil
}
