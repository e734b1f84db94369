package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/app"
)

// newServeCmd creates the 'serve' subcommand: the long-running service
// with the HTTP API, the scheduler and the worker pools.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion service",
		Long: `Starts the HTTP API, the sweep scheduler and the worker pools, and
runs until interrupted. Sweeps are seeded on start and then on the
configured cadence.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run service: %w", err)
	}

	log.Info("service stopped", zap.Int("port", cfg.Server.Port))
	return nil
}
