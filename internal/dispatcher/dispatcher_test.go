package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/discovery"
	"github.com/appradar/appradar/internal/fallback"
	"github.com/appradar/appradar/internal/hash/sha256"
	"github.com/appradar/appradar/internal/id/uuid"
	"github.com/appradar/appradar/internal/ingest"
	"github.com/appradar/appradar/internal/metrics"
	pubmem "github.com/appradar/appradar/internal/publisher/memory"
	queuemem "github.com/appradar/appradar/internal/queue/memory"
	storemem "github.com/appradar/appradar/internal/store/memory"
	"github.com/appradar/appradar/internal/worker"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type pipelineConnector struct {
	m appstore.Marketplace
}

func (f *pipelineConnector) Marketplace() appstore.Marketplace { return f.m }

func (f *pipelineConnector) TopCharts(_ context.Context, _ string, _ appstore.BaseChart, _ int) ([]appstore.RankedApp, error) {
	return []appstore.RankedApp{
		{AppID: "com.alpha", Rank: 1},
		{AppID: "com.beta", Rank: 2},
	}, nil
}

func (f *pipelineConnector) CategoryList(_ context.Context, _ string, _ appstore.BaseChart, _ string, _ int) ([]appstore.RankedApp, error) {
	return nil, nil
}

func (f *pipelineConnector) AppDetails(_ context.Context, appID, _ string) (appstore.AppPayload, error) {
	return appstore.AppPayload{
		Marketplace: f.m,
		AppID:       appID,
		Title:       "App " + appID,
		Developer:   "Acme",
		Category:    "FINANCE",
		Description: "desc",
		Score:       appstore.SomeFloat(4.2),
	}, nil
}

func (f *pipelineConnector) Reviews(_ context.Context, appID, _, _ string) (appstore.ReviewPage, error) {
	return appstore.ReviewPage{Reviews: []appstore.Review{
		{Marketplace: f.m, AppID: appID, ReviewID: appID + "-r1", Author: "u", Rating: 4, Text: "ok", Country: "us", CreatedAt: time.Now().UTC()},
	}}, nil
}

func (f *pipelineConnector) SimilarApps(_ context.Context, _, _ string) ([]appstore.RankedApp, error) {
	return nil, nil
}

func (f *pipelineConnector) DeveloperApps(_ context.Context, _, _ string) ([]appstore.RankedApp, error) {
	return nil, nil
}

func TestPipelineDrainsChartToReviews(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := &pipelineConnector{m: appstore.MarketplaceGooglePlay}
	exec := fallback.New(conn, nil, appstore.NewRetryPolicy(1, time.Millisecond, time.Millisecond), zap.NewNop())
	executors := map[appstore.Marketplace]*fallback.Executor{conn.m: exec}

	store := storemem.New()
	clock := &fixedClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	ids := uuid.NewUUIDGenerator()
	pub := pubmem.New()

	queues := Queues{
		Discovery: queuemem.NewQueue[appstore.DiscoveryJob](16),
		Details:   queuemem.NewQueue[appstore.DetailJob](64),
		Reviews:   queuemem.NewQueue[appstore.ReviewJob](64),
	}
	retry := appstore.RetryState{MaxAttempts: 2, Backoff: time.Millisecond}

	dw := worker.NewDiscoveryWorker(
		discovery.NewEngine(executors, zap.NewNop()),
		queues.Details, ids, retry, zap.NewNop())
	dtw := worker.NewDetailWorker(worker.DetailWorkerConfig{
		Executors:      executors,
		Snapshots:      ingest.NewSnapshotWriter(store, sha256.New(), clock, zap.NewNop()),
		Aggregator:     ingest.NewAggregator(store, clock, zap.NewNop()),
		Reviews:        queues.Reviews,
		Publisher:      pub,
		IDs:            ids,
		Clock:          clock,
		Topic:          "ingest-events",
		ReviewMaxPages: 2,
		Retry:          retry,
		Log:            zap.NewNop(),
	})
	rw := worker.NewReviewWorker(executors,
		ingest.NewReviewIngestor(store, sha256.New(), zap.NewNop()), zap.NewNop())

	d := New(Config{DiscoveryWorkers: 2, DetailWorkers: 2, ReviewWorkers: 1}, queues, dw, dtw, rw, zap.NewNop())
	d.Start(ctx)

	require.NoError(t, queues.Discovery.Enqueue(ctx, appstore.DiscoveryJob{
		ID:          "d-1",
		Marketplace: appstore.MarketplaceGooglePlay,
		Country:     "us",
		ChartToken:  "TOP_FREE",
		Limit:       10,
		Retry:       retry,
	}))

	require.NoError(t, d.WaitIdle(ctx))

	apps, err := store.ListApps(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, apps, 2)

	for _, appID := range []string{"com.alpha", "com.beta"} {
		require.Len(t, store.Snapshots(appstore.MarketplaceGooglePlay, appID), 1)

		reviews, err := store.ListReviews(ctx, appstore.MarketplaceGooglePlay, appID, 10)
		require.NoError(t, err)
		require.Len(t, reviews, 1, "review job chained for %s", appID)

		rankings, err := store.Rankings(ctx, appstore.MarketplaceGooglePlay, appID, 0)
		require.NoError(t, err)
		require.Len(t, rankings, 1)
	}

	require.Len(t, pub.Messages(), 2, "one ingest event per detail job")

	cancel()
	d.Wait()
}
