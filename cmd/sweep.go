package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/appradar/appradar/internal/app"
)

// newSweepCmd creates the 'sweep' subcommand: seed one full chart
// sweep, drain the pipeline and exit.
func newSweepCmd() *cobra.Command {
	var (
		marketplaces []string
		countries    []string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one full chart sweep and exit",
		Long: `Seeds one discovery job per marketplace, country and primary chart,
waits until the pipeline has drained, and exits. Useful for backfills
and cron-driven deployments.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			// Flags override the configured sweep matrix.
			if len(marketplaces) > 0 {
				cfg.Scheduler.Marketplaces = marketplaces
			}
			if len(countries) > 0 {
				cfg.Scheduler.Countries = countries
			}
			if limit > 0 {
				cfg.Scheduler.DiscoveryLimit = limit
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("initialize service: %w", err)
			}

			if err := a.SweepOnce(ctx); err != nil {
				return fmt.Errorf("run sweep: %w", err)
			}

			log.Info("sweep complete")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&marketplaces, "store", nil, "marketplaces to sweep (default from config)")
	cmd.Flags().StringSliceVar(&countries, "countries", nil, "country codes to sweep (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "chart listing depth per discovery job")

	return cmd
}
