package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/discovery"
)

// DiscoveryWorker resolves one chart listing and fans out one detail
// job per ranked app.
type DiscoveryWorker struct {
	engine  *discovery.Engine
	details appstore.Queue[appstore.DetailJob]
	ids     appstore.IDGenerator
	retry   appstore.RetryState
	log     *zap.Logger
}

// NewDiscoveryWorker builds a DiscoveryWorker. retry is the template
// state stamped onto fanned-out jobs.
func NewDiscoveryWorker(engine *discovery.Engine, details appstore.Queue[appstore.DetailJob], ids appstore.IDGenerator, retry appstore.RetryState, log *zap.Logger) *DiscoveryWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &DiscoveryWorker{engine: engine, details: details, ids: ids, retry: retry, log: log}
}

// Handle runs one discovery job. An empty listing is a normal outcome.
func (w *DiscoveryWorker) Handle(ctx context.Context, job appstore.DiscoveryJob) error {
	apps := w.engine.Discover(ctx, job.Marketplace, job.Country, job.ChartToken, job.Limit)
	w.log.Info("discovery listing resolved",
		zap.String("marketplace", string(job.Marketplace)),
		zap.String("country", job.Country),
		zap.String("chart_token", job.ChartToken),
		zap.Int("apps", len(apps)))

	for _, ranked := range apps {
		id, err := w.ids.NewID()
		if err != nil {
			return fmt.Errorf("generate detail job id: %w", err)
		}
		detail := appstore.DetailJob{
			ID:          id,
			Marketplace: job.Marketplace,
			AppID:       ranked.AppID,
			Country:     job.Country,
			Rank:        ranked.Rank,
			ChartToken:  job.ChartToken,
			Source:      "discovery",
			Retry:       w.retry,
		}
		if err := w.details.Enqueue(ctx, detail); err != nil {
			return fmt.Errorf("enqueue detail job for %s: %w", ranked.AppID, err)
		}
	}
	return nil
}
