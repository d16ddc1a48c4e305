package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"
)

var snapshotFile string

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Evaluate the configured watches once and print the results",
	Long: `Load the snapshot, convert every watch's reference price into its targets and
print prices and token status as JSON. Nothing is written to the database.`,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&snapshotFile, "snapshot", "", "snapshot file (overrides snapshot_file from config)")
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if snapshotFile != "" {
		cfg.SnapshotFile = snapshotFile
	}

	t, watches, err := newTracker(cfg)
	if err != nil {
		return err
	}

	evals, err := t.Run(cmd.Context(), cfg.SnapshotFile, watches, nil)
	if err != nil {
		slog.Error("Evaluation failed", "error", err)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(evals)
}
