package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "token-pricer",
	Short: "Token price conversion and payment readiness",
	Long: `token-pricer converts a reference price into token amounts using per-currency
USD rates, and checks whether a wallet's balance and allowance cover the
selected token. Wallet figures come from snapshot files; evaluations can be
printed, served over HTTP, or recorded in PostgreSQL.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
