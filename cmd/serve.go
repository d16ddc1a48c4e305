package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/matrixise/token-pricer/internal/api"
	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/health"
	"github.com/matrixise/token-pricer/internal/storage"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pricing engine over HTTP",
	Long: `Expose POST /v1/prices and GET /health. The health endpoint checks the
snapshot file, and PostgreSQL when DATABASE_URL is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides http_port from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := health.Options{
		SnapshotPath:   cfg.SnapshotFile,
		SnapshotMaxAge: cfg.GetSnapshotMaxAge(),
	}

	if dsn, err := config.DatabaseURL(); err == nil {
		store, err := storage.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("Failed to connect to PostgreSQL", "error", err)
			return err
		}
		defer store.Close()
		opts.Store = store
		slog.Info("PostgreSQL connection established")
	}

	port := cfg.HTTPPort
	if servePort != 0 {
		port = servePort
	}

	router := api.NewRouter(newEngine(cfg), health.NewChecker(opts).Handler(), slog.Default())
	if err := listenAndServe(ctx, port, router); err != nil {
		slog.Error("HTTP server error", "error", err)
		return err
	}
	return nil
}
