// Package fallback wraps a marketplace's connector tiers behind a
// fetch surface that cannot fail: real API first, HTML scrape second,
// synthesized dummy data last.
package fallback

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/metrics"
	"github.com/appradar/appradar/internal/normalize"
)

// DetailsOutcome is a detail fetch result tagged with its source tier.
type DetailsOutcome struct {
	Tier    appstore.Tier
	Payload appstore.AppPayload
}

// ListOutcome is a ranked-listing result tagged with its source tier.
type ListOutcome struct {
	Tier appstore.Tier
	Apps []appstore.RankedApp
}

// ReviewsOutcome is a review-page result tagged with its source tier.
type ReviewsOutcome struct {
	Tier appstore.Tier
	Page appstore.ReviewPage
}

// Executor escalates fetches through the tiers. The primary tier gets
// bounded retries for transient failures; the backup tier gets one
// attempt and is skipped when the upstream confirmed absence or the
// identifier is structurally incompatible with it; the dummy tier
// always succeeds. No method returns an error.
type Executor struct {
	marketplace appstore.Marketplace
	primary     appstore.Connector
	backup      appstore.Connector
	policy      *appstore.ExponentialRetryPolicy
	log         *zap.Logger
}

// New builds an Executor. backup may be nil for stores without a scrape
// tier; policy and log fall back to defaults when nil.
func New(primary, backup appstore.Connector, policy *appstore.ExponentialRetryPolicy, log *zap.Logger) *Executor {
	if policy == nil {
		policy = appstore.NewExponentialRetryPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		marketplace: primary.Marketplace(),
		primary:     primary,
		backup:      backup,
		policy:      policy,
		log:         log,
	}
}

// Marketplace identifies the store this executor serves.
func (e *Executor) Marketplace() appstore.Marketplace {
	return e.marketplace
}

// AppDetails fetches one app's record. The dummy tier synthesizes a
// sentinel-filled placeholder so downstream code always has a payload.
func (e *Executor) AppDetails(ctx context.Context, appID, country string) DetailsOutcome {
	payload, tier, ok := fetch(ctx, e, "app_details", appID,
		func(ctx context.Context, c appstore.Connector) (appstore.AppPayload, error) {
			return c.AppDetails(ctx, appID, country)
		})
	if !ok {
		payload = normalize.Placeholder(e.marketplace, appID)
	}
	return DetailsOutcome{Tier: tier, Payload: payload}
}

// TopCharts fetches a ranked chart. The dummy tier is an empty listing.
func (e *Executor) TopCharts(ctx context.Context, country string, chart appstore.BaseChart, limit int) ListOutcome {
	apps, tier, _ := fetch(ctx, e, "top_charts", "",
		func(ctx context.Context, c appstore.Connector) ([]appstore.RankedApp, error) {
			return c.TopCharts(ctx, country, chart, limit)
		})
	return ListOutcome{Tier: tier, Apps: apps}
}

// CategoryList fetches a category-scoped chart. The dummy tier is an
// empty listing.
func (e *Executor) CategoryList(ctx context.Context, country string, chart appstore.BaseChart, category string, limit int) ListOutcome {
	apps, tier, _ := fetch(ctx, e, "category_list", "",
		func(ctx context.Context, c appstore.Connector) ([]appstore.RankedApp, error) {
			return c.CategoryList(ctx, country, chart, category, limit)
		})
	return ListOutcome{Tier: tier, Apps: apps}
}

// Reviews fetches one review page. The dummy tier is an empty page with
// no cursor, which ends pagination.
func (e *Executor) Reviews(ctx context.Context, appID, country, cursor string) ReviewsOutcome {
	page, tier, _ := fetch(ctx, e, "reviews", appID,
		func(ctx context.Context, c appstore.Connector) (appstore.ReviewPage, error) {
			return c.Reviews(ctx, appID, country, cursor)
		})
	return ReviewsOutcome{Tier: tier, Page: page}
}

// SimilarApps fetches the similar-apps listing.
func (e *Executor) SimilarApps(ctx context.Context, appID, country string) ListOutcome {
	apps, tier, _ := fetch(ctx, e, "similar_apps", appID,
		func(ctx context.Context, c appstore.Connector) ([]appstore.RankedApp, error) {
			return c.SimilarApps(ctx, appID, country)
		})
	return ListOutcome{Tier: tier, Apps: apps}
}

// DeveloperApps fetches the developer's listing.
func (e *Executor) DeveloperApps(ctx context.Context, developerID, country string) ListOutcome {
	apps, tier, _ := fetch(ctx, e, "developer_apps", developerID,
		func(ctx context.Context, c appstore.Connector) ([]appstore.RankedApp, error) {
			return c.DeveloperApps(ctx, developerID, country)
		})
	return ListOutcome{Tier: tier, Apps: apps}
}

// fetch runs the tier ladder for one operation. ok is false when the
// outcome is the dummy tier and the caller must synthesize the value.
func fetch[T any](ctx context.Context, e *Executor, op, id string, do func(context.Context, appstore.Connector) (T, error)) (T, appstore.Tier, bool) {
	mk := string(e.marketplace)

	confirmedAbsent := false
	for attempt := 1; ; attempt++ {
		start := time.Now()
		v, err := do(ctx, e.primary)
		metrics.ObserveFetchDuration(mk, string(appstore.TierRealAPI), time.Since(start))
		if err == nil {
			metrics.ObserveFetchTier(mk, op, string(appstore.TierRealAPI))
			return v, appstore.TierRealAPI, true
		}
		if errors.Is(err, appstore.ErrNotFound) {
			confirmedAbsent = true
			e.log.Info("upstream confirmed absence",
				zap.String("marketplace", mk),
				zap.String("operation", op),
				zap.String("id", id))
			break
		}
		if !e.policy.ShouldRetry(err, attempt) {
			e.log.Warn("primary tier exhausted",
				zap.String("marketplace", mk),
				zap.String("operation", op),
				zap.String("id", id),
				zap.Int("attempts", attempt),
				zap.Error(err))
			break
		}
		e.log.Debug("primary tier retrying",
			zap.String("marketplace", mk),
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if !sleep(ctx, e.policy.Backoff(attempt)) {
			break
		}
	}

	// Confirmed absence skips the scrape: the backup tier cannot find
	// what the primary tier proved does not exist.
	if !confirmedAbsent && e.backup != nil && supportsIdentifier(e.backup, id) {
		start := time.Now()
		v, err := do(ctx, e.backup)
		metrics.ObserveFetchDuration(mk, string(appstore.TierHTMLBackup), time.Since(start))
		if err == nil {
			metrics.ObserveFetchTier(mk, op, string(appstore.TierHTMLBackup))
			return v, appstore.TierHTMLBackup, true
		}
		e.log.Warn("backup tier failed",
			zap.String("marketplace", mk),
			zap.String("operation", op),
			zap.String("id", id),
			zap.Error(err))
	}

	metrics.ObserveFetchTier(mk, op, string(appstore.TierDummyFallback))
	e.log.Info("serving dummy fallback",
		zap.String("marketplace", mk),
		zap.String("operation", op),
		zap.String("id", id))
	var zero T
	return zero, appstore.TierDummyFallback, false
}

// supportsIdentifier gates identifier-keyed operations on backup tiers
// that only resolve a subset of identifier formats. Listing operations
// pass an empty id and are never gated.
func supportsIdentifier(c appstore.Connector, id string) bool {
	if id == "" {
		return true
	}
	checker, ok := c.(appstore.IdentifierChecker)
	if !ok {
		return true
	}
	return checker.SupportsIdentifier(id)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
