package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/metrics"
)

// Aggregator derives the mutable rows from one payload observation:
// the canonical record, the per-day statistics row and, when the
// observation came from a chart, the ranking row. Every write is an
// idempotent upsert, so the aggregator runs on dedup hits too and keeps
// the current day's rows fresh.
type Aggregator struct {
	store appstore.Store
	clock appstore.Clock
	log   *zap.Logger
}

// NewAggregator builds an Aggregator.
func NewAggregator(store appstore.Store, clock appstore.Clock, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{store: store, clock: clock, log: log}
}

// Apply upserts the derived rows for one observation. freshlyObserved
// reports whether the payload content changed since the last snapshot;
// only fresh observations refresh the canonical last-seen timestamp.
func (a *Aggregator) Apply(ctx context.Context, payload appstore.AppPayload, obs Observation, freshlyObserved bool) error {
	now := a.clock.Now().UTC()

	app := appstore.CanonicalApp{
		Payload:     payload,
		Quality:     appstore.QualityOf(payload),
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	if err := a.store.UpsertApp(ctx, app, freshlyObserved); err != nil {
		return fmt.Errorf("upsert canonical app: %w", err)
	}

	stat := appstore.DailyStat{
		Marketplace: payload.Marketplace,
		AppID:       payload.AppID,
		Day:         now.Truncate(24 * time.Hour),
		Country:     obs.Country,
		Score:       payload.Score,
		RatingCount: payload.RatingCount,
		ReviewCount: payload.ReviewCount,
		InstallsMin: payload.InstallsMin,
		InstallsMax: payload.InstallsMax,
	}
	if err := a.store.UpsertDailyStat(ctx, stat); err != nil {
		return fmt.Errorf("upsert daily stat: %w", err)
	}

	if obs.Rank <= 0 || obs.ChartToken == "" {
		return nil
	}

	chart, category, recognized := appstore.DecodeChartToken(obs.ChartToken)
	if !recognized {
		a.log.Warn("unrecognized chart token on ranking upsert",
			zap.String("marketplace", string(payload.Marketplace)),
			zap.String("chart_token", obs.ChartToken))
	}
	entry := appstore.RankingEntry{
		Marketplace: payload.Marketplace,
		AppID:       payload.AppID,
		Chart:       chart,
		Category:    category,
		Country:     obs.Country,
		Date:        now.Truncate(24 * time.Hour),
		Rank:        obs.Rank,
	}
	if err := a.store.UpsertRanking(ctx, entry); err != nil {
		return fmt.Errorf("upsert ranking: %w", err)
	}
	metrics.ObserveRankingUpsert(string(payload.Marketplace), string(chart))
	return nil
}
