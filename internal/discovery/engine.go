// Package discovery turns chart tokens into ranked app listings.
package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/fallback"
)

// pageCeilings caps how many ranked entries one sweep requests per
// store, matching what the upstream surfaces actually serve.
var pageCeilings = map[appstore.Marketplace]int{
	appstore.MarketplaceGooglePlay: 500,
	appstore.MarketplaceAppleStore: 200,
}

const defaultCeiling = 200

// Engine resolves chart tokens against the per-store fetch executors.
// It is read-only; persisting the listing is the caller's job.
type Engine struct {
	executors map[appstore.Marketplace]*fallback.Executor
	log       *zap.Logger
}

// NewEngine builds an Engine over the given executors.
func NewEngine(executors map[appstore.Marketplace]*fallback.Executor, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{executors: executors, log: log}
}

// Discover fetches the ranked listing behind a chart token. An unknown
// store, unrecognized token, or empty upstream chart all yield an empty
// listing, never an error.
func (e *Engine) Discover(ctx context.Context, m appstore.Marketplace, country, chartToken string, limit int) []appstore.RankedApp {
	exec, ok := e.executors[m]
	if !ok {
		e.log.Warn("no executor for marketplace", zap.String("marketplace", string(m)))
		return nil
	}

	chart, category, recognized := appstore.DecodeChartToken(chartToken)
	if !recognized {
		e.log.Warn("unrecognized chart token, using default chart",
			zap.String("marketplace", string(m)),
			zap.String("chart_token", chartToken))
	}

	ceiling, ok := pageCeilings[m]
	if !ok {
		ceiling = defaultCeiling
	}
	if limit <= 0 || limit > ceiling {
		limit = ceiling
	}

	var out fallback.ListOutcome
	if category != "" {
		out = exec.CategoryList(ctx, country, chart, category, limit)
	} else {
		out = exec.TopCharts(ctx, country, chart, limit)
	}

	e.log.Debug("discovery listing fetched",
		zap.String("marketplace", string(m)),
		zap.String("country", country),
		zap.String("chart_token", chartToken),
		zap.String("tier", string(out.Tier)),
		zap.Int("apps", len(out.Apps)))

	if len(out.Apps) > limit {
		out.Apps = out.Apps[:limit]
	}
	return out.Apps
}
