package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/logger"
	"github.com/matrixise/token-pricer/internal/storage"
	"github.com/spf13/cobra"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the last recorded evaluation of every watch",
	RunE:  runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	dsn, err := config.DatabaseURL()
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}

	store, err := storage.NewStore(cmd.Context(), dsn)
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		return err
	}
	defer store.Close()

	evals, err := store.LatestEvaluations(cmd.Context())
	if err != nil {
		slog.Error("Failed to read evaluations", "error", err)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(evals)
}
