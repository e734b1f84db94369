// Package scheduler drives the recurring ingestion cadences: the chart
// sweep and the daily deep refresh.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
)

// Seeder enqueues the jobs one full sweep consists of. The scheduler,
// the HTTP trigger and the one-shot sweep command all share it.
type Seeder struct {
	discovery appstore.Queue[appstore.DiscoveryJob]
	ids       appstore.IDGenerator
	retry     appstore.RetryState
	log       *zap.Logger

	marketplaces []appstore.Marketplace
	countries    []string
	limit        int
}

// SeederConfig wires a Seeder.
type SeederConfig struct {
	Discovery    appstore.Queue[appstore.DiscoveryJob]
	IDs          appstore.IDGenerator
	Retry        appstore.RetryState
	Marketplaces []appstore.Marketplace
	Countries    []string
	Limit        int
	Log          *zap.Logger
}

// NewSeeder builds a Seeder.
func NewSeeder(cfg SeederConfig) *Seeder {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Seeder{
		discovery:    cfg.Discovery,
		ids:          cfg.IDs,
		retry:        cfg.Retry,
		marketplaces: cfg.Marketplaces,
		countries:    cfg.Countries,
		limit:        cfg.Limit,
		log:          cfg.Log,
	}
}

// EnqueueSweep seeds one discovery job per marketplace, country and
// primary chart, and reports how many jobs were enqueued.
func (s *Seeder) EnqueueSweep(ctx context.Context) (int, error) {
	enqueued := 0
	for _, m := range s.marketplaces {
		for _, country := range s.countries {
			for _, chart := range appstore.PrimaryCharts() {
				id, err := s.ids.NewID()
				if err != nil {
					return enqueued, fmt.Errorf("generate discovery job id: %w", err)
				}
				job := appstore.DiscoveryJob{
					ID:          id,
					Marketplace: m,
					Country:     country,
					ChartToken:  string(chart),
					Limit:       s.limit,
					Retry:       s.retry,
				}
				if err := s.discovery.Enqueue(ctx, job); err != nil {
					return enqueued, fmt.Errorf("enqueue discovery job: %w", err)
				}
				enqueued++
			}
		}
	}
	s.log.Info("sweep seeded", zap.Int("jobs", enqueued))
	return enqueued, nil
}

// Scheduler ticks the sweep and deep-refresh cadences.
type Scheduler struct {
	seeder  *Seeder
	store   appstore.Store
	reviews appstore.Queue[appstore.ReviewJob]
	ids     appstore.IDGenerator
	retry   appstore.RetryState
	log     *zap.Logger

	sweepEvery     time.Duration
	refreshTopN    int
	reviewMaxPages int
}

// Config wires a Scheduler.
type Config struct {
	Seeder         *Seeder
	Store          appstore.Store
	Reviews        appstore.Queue[appstore.ReviewJob]
	IDs            appstore.IDGenerator
	Retry          appstore.RetryState
	SweepEvery     time.Duration
	RefreshTopN    int
	ReviewMaxPages int
	Log            *zap.Logger
}

// New builds a Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = 6 * time.Hour
	}
	if cfg.RefreshTopN <= 0 {
		cfg.RefreshTopN = 200
	}
	if cfg.ReviewMaxPages <= 0 {
		cfg.ReviewMaxPages = 1
	}
	return &Scheduler{
		seeder:         cfg.Seeder,
		store:          cfg.Store,
		reviews:        cfg.Reviews,
		ids:            cfg.IDs,
		retry:          cfg.Retry,
		sweepEvery:     cfg.SweepEvery,
		refreshTopN:    cfg.RefreshTopN,
		reviewMaxPages: cfg.ReviewMaxPages,
		log:            cfg.Log,
	}
}

// Run seeds an initial sweep and then ticks until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	if _, err := s.seeder.EnqueueSweep(ctx); err != nil {
		s.log.Error("initial sweep seed failed", zap.Error(err))
	}

	sweep := time.NewTicker(s.sweepEvery)
	defer sweep.Stop()
	refresh := time.NewTicker(24 * time.Hour)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-sweep.C:
			if _, err := s.seeder.EnqueueSweep(ctx); err != nil {
				s.log.Error("sweep seed failed", zap.Error(err))
			}
		case <-refresh.C:
			if err := s.DeepRefresh(ctx); err != nil {
				s.log.Error("deep refresh failed", zap.Error(err))
			}
		}
	}
}

// DeepRefresh targets the apps with the largest rating volume and
// enqueues a review ingestion run for each.
func (s *Scheduler) DeepRefresh(ctx context.Context) error {
	apps, err := s.store.TopRatedApps(ctx, s.refreshTopN)
	if err != nil {
		return fmt.Errorf("list top rated apps: %w", err)
	}
	for _, app := range apps {
		id, err := s.ids.NewID()
		if err != nil {
			return fmt.Errorf("generate review job id: %w", err)
		}
		job := appstore.ReviewJob{
			ID:          id,
			Marketplace: app.Payload.Marketplace,
			AppID:       app.Payload.AppID,
			Country:     "us",
			MaxPages:    s.reviewMaxPages,
			Retry:       s.retry,
		}
		if err := s.reviews.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue review job: %w", err)
		}
	}
	s.log.Info("deep refresh seeded", zap.Int("apps", len(apps)))
	return nil
}
