package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/fallback"
	"github.com/appradar/appradar/internal/ingest"
)

// ReviewWorker runs the paginated review ingestion for one app.
type ReviewWorker struct {
	executors map[appstore.Marketplace]*fallback.Executor
	ingestor  *ingest.ReviewIngestor
	log       *zap.Logger
}

// NewReviewWorker builds a ReviewWorker.
func NewReviewWorker(executors map[appstore.Marketplace]*fallback.Executor, ingestor *ingest.ReviewIngestor, log *zap.Logger) *ReviewWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReviewWorker{executors: executors, ingestor: ingestor, log: log}
}

// Handle runs one review job.
func (w *ReviewWorker) Handle(ctx context.Context, job appstore.ReviewJob) error {
	exec, ok := w.executors[job.Marketplace]
	if !ok {
		return fmt.Errorf("no executor for marketplace %q", job.Marketplace)
	}

	n, err := w.ingestor.Ingest(ctx, exec, job.Marketplace, job.AppID, job.Country, job.MaxPages)
	if err != nil {
		return fmt.Errorf("ingest reviews for %s: %w", job.AppID, err)
	}
	w.log.Info("review job finished",
		zap.String("marketplace", string(job.Marketplace)),
		zap.String("app_id", job.AppID),
		zap.Int("new_rows", n))
	return nil
}
