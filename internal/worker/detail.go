package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/fallback"
	"github.com/appradar/appradar/internal/ingest"
)

// IngestEvent is the completion message published after a detail job.
type IngestEvent struct {
	Marketplace     string    `json:"marketplace"`
	AppID           string    `json:"app_id"`
	Country         string    `json:"country"`
	Tier            string    `json:"tier"`
	SnapshotWritten bool      `json:"snapshot_written"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// DetailWorker runs the core ingestion flow for one app: fetch through
// the fallback ladder, snapshot with dedup, aggregate, publish the
// completion event and chain exactly one review job.
type DetailWorker struct {
	executors  map[appstore.Marketplace]*fallback.Executor
	snapshots  *ingest.SnapshotWriter
	aggregator *ingest.Aggregator
	reviews    appstore.Queue[appstore.ReviewJob]
	publisher  appstore.Publisher
	ids        appstore.IDGenerator
	clock      appstore.Clock
	topic      string
	maxPages   int
	retry      appstore.RetryState
	log        *zap.Logger
}

// DetailWorkerConfig wires a DetailWorker. Publisher may be nil when
// event publishing is disabled.
type DetailWorkerConfig struct {
	Executors      map[appstore.Marketplace]*fallback.Executor
	Snapshots      *ingest.SnapshotWriter
	Aggregator     *ingest.Aggregator
	Reviews        appstore.Queue[appstore.ReviewJob]
	Publisher      appstore.Publisher
	IDs            appstore.IDGenerator
	Clock          appstore.Clock
	Topic          string
	ReviewMaxPages int
	Retry          appstore.RetryState
	Log            *zap.Logger
}

// NewDetailWorker builds a DetailWorker.
func NewDetailWorker(cfg DetailWorkerConfig) *DetailWorker {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.ReviewMaxPages <= 0 {
		cfg.ReviewMaxPages = 1
	}
	return &DetailWorker{
		executors:  cfg.Executors,
		snapshots:  cfg.Snapshots,
		aggregator: cfg.Aggregator,
		reviews:    cfg.Reviews,
		publisher:  cfg.Publisher,
		ids:        cfg.IDs,
		clock:      cfg.Clock,
		topic:      cfg.Topic,
		maxPages:   cfg.ReviewMaxPages,
		retry:      cfg.Retry,
		log:        cfg.Log,
	}
}

// Handle runs one detail job end to end.
func (w *DetailWorker) Handle(ctx context.Context, job appstore.DetailJob) error {
	exec, ok := w.executors[job.Marketplace]
	if !ok {
		return fmt.Errorf("no executor for marketplace %q", job.Marketplace)
	}

	out := exec.AppDetails(ctx, job.AppID, job.Country)
	obs := ingest.Observation{
		Tier:       out.Tier,
		Country:    job.Country,
		Rank:       job.Rank,
		ChartToken: job.ChartToken,
		Source:     job.Source,
	}

	wrote, err := w.snapshots.Write(ctx, out.Payload, obs)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := w.aggregator.Apply(ctx, out.Payload, obs, wrote); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	w.publishEvent(ctx, job, out.Tier, wrote)

	id, err := w.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate review job id: %w", err)
	}
	review := appstore.ReviewJob{
		ID:          id,
		Marketplace: job.Marketplace,
		AppID:       job.AppID,
		Country:     job.Country,
		MaxPages:    w.maxPages,
		Retry:       w.retry,
	}
	if err := w.reviews.Enqueue(ctx, review); err != nil {
		return fmt.Errorf("enqueue review job: %w", err)
	}
	return nil
}

// publishEvent is best-effort: a broker outage must not fail the job
// and trigger a refetch.
func (w *DetailWorker) publishEvent(ctx context.Context, job appstore.DetailJob, tier appstore.Tier, wrote bool) {
	if w.publisher == nil {
		return
	}
	event := IngestEvent{
		Marketplace:     string(job.Marketplace),
		AppID:           job.AppID,
		Country:         job.Country,
		Tier:            string(tier),
		SnapshotWritten: wrote,
		OccurredAt:      w.clock.Now(),
	}
	if _, err := w.publisher.Publish(ctx, w.topic, event); err != nil {
		w.log.Warn("publish ingest event failed",
			zap.String("app_id", job.AppID),
			zap.Error(err))
	}
}
