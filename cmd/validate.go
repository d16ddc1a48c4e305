package cmd

import (
	"log/slog"

	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/logger"
	"github.com/matrixise/token-pricer/internal/scheduler"
	"github.com/matrixise/token-pricer/internal/snapshot"
	"github.com/spf13/cobra"
)

var checkSnapshot bool

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long: `Validate the configuration file syntax and values without running the application.
With --snapshot, the snapshot file it points to is loaded and validated too.`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&checkSnapshot, "snapshot", false, "also validate the snapshot file")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	_, dbErr := config.DatabaseURL()

	schedule := "one-shot"
	if cfg.Interval != "" {
		schedule = scheduler.DescribeSchedule(cfg.Interval, cfg.GetTimezone())
	}

	slog.Info("✓ Configuration valid",
		"watches", len(cfg.Watches),
		"snapshot_file", cfg.SnapshotFile,
		"native_currency", cfg.NativeCurrency,
		"schedule", schedule,
		"cron", cfg.IsCronExpression(),
		"log_level", cfg.LogLevel,
		"database_url_set", dbErr == nil,
	)

	if !checkSnapshot {
		return nil
	}

	snap, err := snapshot.Load(cfg.SnapshotFile)
	if err != nil {
		slog.Error("Snapshot validation failed", "error", err)
		return err
	}
	slog.Info("✓ Snapshot valid",
		"path", snap.Path,
		"currencies", len(snap.Prices()),
		"wallets", snap.Wallets(),
	)
	return nil
}
