package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/matrixise/token-pricer/internal/api"
	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/health"
	"github.com/matrixise/token-pricer/internal/logger"
	"github.com/matrixise/token-pricer/internal/scheduler"
	"github.com/matrixise/token-pricer/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	interval string
	once     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate watches and record them in PostgreSQL",
	Long: `Evaluate every configured watch against the snapshot file and persist the
results to PostgreSQL, once or on a clock-aligned schedule.`,
	RunE: runTracker,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&interval, "interval", "", "run interval - duration (5m, 1h) or cron (\"*/5 * * * *\") - empty for one-time run")
	runCmd.Flags().BoolVar(&once, "once", false, "run once and exit (default)")
}

func runTracker(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}
	applyLogLevel(cfg)

	if interval != "" {
		if err := scheduler.ValidateScheduleInterval(interval); err != nil {
			slog.Error("Invalid --interval", "error", err)
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Use interval from flag if provided, otherwise from config
	runInterval := interval
	if runInterval == "" {
		runInterval = cfg.Interval
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"watches", len(cfg.Watches),
		"snapshot_file", cfg.SnapshotFile,
		"native_currency", cfg.NativeCurrency,
		"interval", runInterval,
	)

	if err := storage.RunMigrations(ctx, databaseURL); err != nil {
		slog.Error("Migration failed", "error", err)
		return err
	}

	store, err := storage.NewStore(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		return err
	}
	defer store.Close()
	slog.Info("PostgreSQL connection established")

	t, watches, err := newTracker(cfg)
	if err != nil {
		return err
	}

	process := func(ctx context.Context) error {
		_, err := t.Run(ctx, cfg.SnapshotFile, watches, store)
		return err
	}

	if runInterval == "" || once {
		if err := process(ctx); err != nil {
			slog.Error("Processing failed", "error", err)
			return err
		}
		slog.Info("Processing completed successfully")
		return nil
	}

	return runDaemon(ctx, cfg, runInterval, store, process)
}

func runDaemon(ctx context.Context, cfg *config.Config, runInterval string, store *storage.Store, process scheduler.JobFunc) error {
	slog.Info("Starting daemon mode with scheduler",
		"interval", runInterval,
		"timezone", cfg.GetTimezone().String(),
		"run_immediately", cfg.ShouldRunImmediately())

	var checker *health.Checker
	sched, err := scheduler.NewScheduler(ctx, scheduler.Config{
		Interval:       runInterval,
		Timezone:       cfg.GetTimezone(),
		RunImmediately: cfg.ShouldRunImmediately(),
		Logger:         slog.Default(),
	}, func(jobCtx context.Context) error {
		err := process(jobCtx)
		checker.UpdateLastRun(err == nil)
		return err
	})
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return fmt.Errorf("scheduler creation failed: %w", err)
	}

	checker = health.NewChecker(health.Options{
		Store:          store,
		SnapshotPath:   cfg.SnapshotFile,
		SnapshotMaxAge: cfg.GetSnapshotMaxAge(),
		Interval:       sched.ExpectedInterval(),
	})
	router := api.NewRouter(newEngine(cfg), checker.Handler(), slog.Default())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(ctx, cfg.HTTPPort, router)
	})
	g.Go(func() error {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler start failed: %w", err)
		}
		slog.Info("Daemon mode started with clock-aligned scheduling")

		<-ctx.Done()
		lastRun, _ := sched.LastRun()
		slog.Info("Shutdown requested, stopping daemon", "last_run", lastRun)
		return sched.Stop()
	})

	if err := g.Wait(); err != nil {
		slog.Error("Daemon stopped with error", "error", err)
		return err
	}
	return nil
}
