// Package cmd defines the CLI commands for the appradar executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/config"
	"github.com/appradar/appradar/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appradar",
		Short: "App marketplace metadata, rankings and reviews ingestion",
		Long: `appradar continuously discovers apps across marketplace charts,
fetches their metadata through a tiered API/HTML fallback ladder, and
persists deduplicated snapshots, daily stats, rankings and reviews.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars with the APPRADAR prefix override it)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSweepCmd())

	return cmd
}

// loadConfigAndLogger is shared setup for every subcommand.
func loadConfigAndLogger() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
