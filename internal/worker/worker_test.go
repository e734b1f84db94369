package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/discovery"
	"github.com/appradar/appradar/internal/fallback"
	"github.com/appradar/appradar/internal/hash/sha256"
	"github.com/appradar/appradar/internal/ingest"
	"github.com/appradar/appradar/internal/metrics"
	pubmem "github.com/appradar/appradar/internal/publisher/memory"
	queuemem "github.com/appradar/appradar/internal/queue/memory"
	storemem "github.com/appradar/appradar/internal/store/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("job-%d", s.n), nil
}

type stubConnector struct {
	m       appstore.Marketplace
	charts  []appstore.RankedApp
	details map[string]appstore.AppPayload
	reviews map[string]appstore.ReviewPage
}

func (f *stubConnector) Marketplace() appstore.Marketplace { return f.m }

func (f *stubConnector) TopCharts(_ context.Context, _ string, _ appstore.BaseChart, _ int) ([]appstore.RankedApp, error) {
	return f.charts, nil
}

func (f *stubConnector) CategoryList(_ context.Context, _ string, _ appstore.BaseChart, _ string, _ int) ([]appstore.RankedApp, error) {
	return f.charts, nil
}

func (f *stubConnector) AppDetails(_ context.Context, appID, _ string) (appstore.AppPayload, error) {
	p, ok := f.details[appID]
	if !ok {
		return appstore.AppPayload{}, appstore.ErrNotFound
	}
	return p, nil
}

func (f *stubConnector) Reviews(_ context.Context, appID, _, _ string) (appstore.ReviewPage, error) {
	return f.reviews[appID], nil
}

func (f *stubConnector) SimilarApps(_ context.Context, _, _ string) ([]appstore.RankedApp, error) {
	return nil, nil
}

func (f *stubConnector) DeveloperApps(_ context.Context, _, _ string) ([]appstore.RankedApp, error) {
	return nil, nil
}

func payloadFor(appID string) appstore.AppPayload {
	return appstore.AppPayload{
		Marketplace: appstore.MarketplaceGooglePlay,
		AppID:       appID,
		Title:       "App " + appID,
		Developer:   "Acme",
		Category:    "FINANCE",
		Description: "desc",
		Score:       appstore.SomeFloat(4.0),
		RatingCount: appstore.SomeInt(100),
	}
}

func executorsFor(conn *stubConnector) map[appstore.Marketplace]*fallback.Executor {
	exec := fallback.New(conn, nil, appstore.NewRetryPolicy(1, time.Millisecond, time.Millisecond), zap.NewNop())
	return map[appstore.Marketplace]*fallback.Executor{conn.m: exec}
}

func TestDiscoveryWorkerFansOutDetailJobs(t *testing.T) {
	t.Parallel()

	conn := &stubConnector{
		m: appstore.MarketplaceGooglePlay,
		charts: []appstore.RankedApp{
			{AppID: "com.a", Rank: 1},
			{AppID: "com.b", Rank: 2},
			{AppID: "com.c", Rank: 3},
		},
	}
	engine := discovery.NewEngine(executorsFor(conn), zap.NewNop())
	details := queuemem.NewQueue[appstore.DetailJob](16)
	w := NewDiscoveryWorker(engine, details, &seqIDs{}, appstore.RetryState{MaxAttempts: 2}, zap.NewNop())

	job := appstore.DiscoveryJob{
		ID:          "d-1",
		Marketplace: appstore.MarketplaceGooglePlay,
		Country:     "us",
		ChartToken:  "TOP_FREE",
		Limit:       50,
	}
	require.NoError(t, w.Handle(context.Background(), job))
	require.Equal(t, 3, details.Len(), "one detail job per ranked app")

	first, err := details.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "com.a", first.AppID)
	require.Equal(t, 1, first.Rank)
	require.Equal(t, "TOP_FREE", first.ChartToken)
	require.Equal(t, "discovery", first.Source)
	require.Equal(t, 2, first.Retry.MaxAttempts)
}

func newDetailWorker(conn *stubConnector, store *storemem.Store, reviews appstore.Queue[appstore.ReviewJob], pub appstore.Publisher) *DetailWorker {
	clock := &fixedClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	return NewDetailWorker(DetailWorkerConfig{
		Executors:      executorsFor(conn),
		Snapshots:      ingest.NewSnapshotWriter(store, sha256.New(), clock, zap.NewNop()),
		Aggregator:     ingest.NewAggregator(store, clock, zap.NewNop()),
		Reviews:        reviews,
		Publisher:      pub,
		IDs:            &seqIDs{},
		Clock:          clock,
		Topic:          "ingest-events",
		ReviewMaxPages: 3,
		Retry:          appstore.RetryState{MaxAttempts: 2},
		Log:            zap.NewNop(),
	})
}

func TestDetailWorkerIngestsAndChainsReviewJob(t *testing.T) {
	t.Parallel()

	conn := &stubConnector{
		m:       appstore.MarketplaceGooglePlay,
		details: map[string]appstore.AppPayload{"com.a": payloadFor("com.a")},
	}
	store := storemem.New()
	reviews := queuemem.NewQueue[appstore.ReviewJob](4)
	pub := pubmem.New()
	w := newDetailWorker(conn, store, reviews, pub)

	job := appstore.DetailJob{
		ID:          "dt-1",
		Marketplace: appstore.MarketplaceGooglePlay,
		AppID:       "com.a",
		Country:     "us",
		Rank:        5,
		ChartToken:  "TOP_FREE",
		Source:      "discovery",
	}
	require.NoError(t, w.Handle(context.Background(), job))

	app, err := store.GetApp(context.Background(), appstore.MarketplaceGooglePlay, "com.a")
	require.NoError(t, err)
	require.Equal(t, "App com.a", app.Payload.Title)
	require.Len(t, store.Snapshots(appstore.MarketplaceGooglePlay, "com.a"), 1)

	require.Equal(t, 1, reviews.Len(), "exactly one chained review job")
	rj, err := reviews.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "com.a", rj.AppID)
	require.Equal(t, 3, rj.MaxPages)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	event, ok := msgs[0].Payload.(IngestEvent)
	require.True(t, ok)
	require.Equal(t, "REAL_API", event.Tier)
	require.True(t, event.SnapshotWritten)
}

func TestDetailWorkerDedupHitStillAggregatesAndChains(t *testing.T) {
	t.Parallel()

	conn := &stubConnector{
		m:       appstore.MarketplaceGooglePlay,
		details: map[string]appstore.AppPayload{"com.a": payloadFor("com.a")},
	}
	store := storemem.New()
	reviews := queuemem.NewQueue[appstore.ReviewJob](4)
	pub := pubmem.New()
	w := newDetailWorker(conn, store, reviews, pub)

	job := appstore.DetailJob{ID: "dt-1", Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.a", Country: "us"}
	require.NoError(t, w.Handle(context.Background(), job))
	require.NoError(t, w.Handle(context.Background(), job))

	require.Len(t, store.Snapshots(appstore.MarketplaceGooglePlay, "com.a"), 1, "unchanged payload dedups")
	require.Equal(t, 2, reviews.Len(), "each detail job chains its own review job")

	stats, err := store.DailyStats(context.Background(), appstore.MarketplaceGooglePlay, "com.a", "us", 0)
	require.NoError(t, err)
	require.Len(t, stats, 1, "daily stat upsert runs on dedup hits too")

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	second, ok := msgs[1].Payload.(IngestEvent)
	require.True(t, ok)
	require.False(t, second.SnapshotWritten)
}

func TestDetailWorkerAbsentAppStoresPlaceholder(t *testing.T) {
	t.Parallel()

	conn := &stubConnector{m: appstore.MarketplaceGooglePlay}
	store := storemem.New()
	reviews := queuemem.NewQueue[appstore.ReviewJob](4)
	w := newDetailWorker(conn, store, reviews, nil)

	job := appstore.DetailJob{ID: "dt-1", Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.gone", Country: "us"}
	require.NoError(t, w.Handle(context.Background(), job))

	app, err := store.GetApp(context.Background(), appstore.MarketplaceGooglePlay, "com.gone")
	require.NoError(t, err)
	require.Equal(t, appstore.NotAvailable, app.Payload.Title)
	require.Equal(t, appstore.QualityFlagged, app.Quality)

	snaps := store.Snapshots(appstore.MarketplaceGooglePlay, "com.gone")
	require.Len(t, snaps, 1)
	require.Equal(t, appstore.TierDummyFallback, snaps[0].Tier)
}

func TestReviewWorkerPersistsReviews(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	conn := &stubConnector{
		m: appstore.MarketplaceGooglePlay,
		reviews: map[string]appstore.ReviewPage{
			"com.a": {Reviews: []appstore.Review{
				{Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.a", ReviewID: "r1", Author: "u", Rating: 5, Text: "good", Country: "us", CreatedAt: now},
			}},
		},
	}
	store := storemem.New()
	w := NewReviewWorker(executorsFor(conn), ingest.NewReviewIngestor(store, sha256.New(), zap.NewNop()), zap.NewNop())

	job := appstore.ReviewJob{ID: "r-1", Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.a", Country: "us", MaxPages: 2}
	require.NoError(t, w.Handle(context.Background(), job))

	rows, err := store.ListReviews(context.Background(), appstore.MarketplaceGooglePlay, "com.a", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queuemem.NewQueue[appstore.DetailJob](4)
	var mu sync.Mutex
	calls := 0

	handle := func(_ context.Context, _ appstore.DetailJob) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	job := appstore.DetailJob{ID: "dt-1", Retry: appstore.RetryState{MaxAttempts: 5, Backoff: time.Millisecond}}
	require.NoError(t, q.Enqueue(ctx, job))

	go Process(ctx, "details", q, handle, nil, zap.NewNop())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 3
	}, time.Second, 5*time.Millisecond)
	require.Zero(t, q.Len())
}

func TestProcessStopsRetryingWhenExhausted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queuemem.NewQueue[appstore.DetailJob](4)
	var mu sync.Mutex
	calls := 0

	handle := func(_ context.Context, _ appstore.DetailJob) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("permanent")
	}

	job := appstore.DetailJob{ID: "dt-1", Retry: appstore.RetryState{MaxAttempts: 1, Backoff: time.Millisecond}}
	require.NoError(t, q.Enqueue(ctx, job))

	go Process(ctx, "details", q, handle, nil, zap.NewNop())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2 && q.Len() == 0
	}, time.Second, 5*time.Millisecond)

	// The loop is still alive and takes the next job.
	require.NoError(t, q.Enqueue(ctx, appstore.DetailJob{ID: "dt-2", Retry: appstore.RetryState{MaxAttempts: 1}}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, time.Second, 5*time.Millisecond)
}
