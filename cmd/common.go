package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/fixedpoint"
	"github.com/matrixise/token-pricer/internal/logger"
	"github.com/matrixise/token-pricer/internal/pricing"
	"github.com/matrixise/token-pricer/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

// loadConfig loads the config file and applies its log level
func loadConfig() (*config.Config, error) {
	logger.Setup(logLevel)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return nil, err
	}
	applyLogLevel(cfg)
	return cfg, nil
}

// applyLogLevel switches to the config log level unless --log-level was given
func applyLogLevel(cfg *config.Config) {
	if cfg.LogLevel != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		logger.Setup(cfg.LogLevel)
	}
}

func newEngine(cfg *config.Config) *pricing.Engine {
	return pricing.NewEngine(pricing.Config{
		NativeCurrency: cfg.NativeCurrency,
		FixedPoint:     fixedpoint.Ether,
		Logger:         slog.Default(),
	})
}

func newTracker(cfg *config.Config) (*tracker.Tracker, []tracker.Watch, error) {
	watches, err := tracker.WatchesFromConfig(cfg.Watches)
	if err != nil {
		slog.Error("Invalid watch", "error", err)
		return nil, nil, err
	}
	return tracker.New(newEngine(cfg), slog.Default()), watches, nil
}

// listenAndServe serves handler on port until ctx is cancelled
func listenAndServe(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
