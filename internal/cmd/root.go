// Package cmd holds the storefront command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront - catalog, cart, orders and returns over HTTP",
	Long: `Storefront serves a small shop API: product catalog browsing, carts, checkout,
the order lifecycle, seller product administration and the return/refund workflow.

Configuration is read from config.yaml, a .env file and the environment
(e.g. DATABASE_DSN, JWT_SECRET).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml when present)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
