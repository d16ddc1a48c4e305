package cmd

import (
	"context"
	"log/slog"

	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/logger"
	"github.com/matrixise/token-pricer/internal/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long:  `Run, rollback, or check the status of database migrations.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the last migration",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// migrateWith runs op against DATABASE_URL, logging failures once
func migrateWith(ctx context.Context, failure string, op func(context.Context, string) error) error {
	logger.Setup(logLevel)

	dsn, err := config.DatabaseURL()
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}

	if err := op(ctx, dsn); err != nil {
		slog.Error(failure, "error", err)
		return err
	}
	return nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	if err := migrateWith(cmd.Context(), "Migration failed", storage.RunMigrations); err != nil {
		return err
	}
	slog.Info("Migrations applied successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	if err := migrateWith(cmd.Context(), "Rollback failed", storage.MigrateDown); err != nil {
		return err
	}
	slog.Info("Migration rolled back successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return migrateWith(cmd.Context(), "Failed to get migration status", storage.MigrateStatus)
}
