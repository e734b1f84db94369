// Package app assembles the ingestion service from its parts: store,
// connectors, fallback executors, queues, workers, scheduler and the
// HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/api"
	"github.com/appradar/appradar/internal/appstore"
	clocksys "github.com/appradar/appradar/internal/clock/system"
	"github.com/appradar/appradar/internal/config"
	"github.com/appradar/appradar/internal/connector"
	"github.com/appradar/appradar/internal/connector/appleitunes"
	"github.com/appradar/appradar/internal/connector/googleplay"
	"github.com/appradar/appradar/internal/discovery"
	"github.com/appradar/appradar/internal/dispatcher"
	"github.com/appradar/appradar/internal/fallback"
	"github.com/appradar/appradar/internal/hash/sha256"
	"github.com/appradar/appradar/internal/id/uuid"
	"github.com/appradar/appradar/internal/ingest"
	"github.com/appradar/appradar/internal/metrics"
	"github.com/appradar/appradar/internal/policy/ratelimit"
	pubmem "github.com/appradar/appradar/internal/publisher/memory"
	pubgcp "github.com/appradar/appradar/internal/publisher/pubsub"
	queuemem "github.com/appradar/appradar/internal/queue/memory"
	"github.com/appradar/appradar/internal/scheduler"
	storemem "github.com/appradar/appradar/internal/store/memory"
	storepg "github.com/appradar/appradar/internal/store/postgres"
	"github.com/appradar/appradar/internal/worker"
)

// App holds the wired service and its lifecycle handles.
type App struct {
	cfg config.Config
	log *zap.Logger

	store      appstore.Store
	publisher  appstore.Publisher
	pubCloser  func() error
	queues     dispatcher.Queues
	dispatcher *dispatcher.Dispatcher
	seeder     *scheduler.Seeder
	scheduler  *scheduler.Scheduler
	server     *http.Server
}

// New wires every component from config. The returned App owns the
// store, publisher and queues and releases them in Close.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	metrics.Init()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, pubCloser, err := buildPublisher(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.RPS,
		DefaultBurst: cfg.Fetch.Burst,
	})
	client := connector.NewClient(connector.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Limiter:   limiter,
	})

	fetchPolicy := appstore.NewRetryPolicy(
		cfg.Fetch.MaxRetries,
		time.Duration(cfg.Fetch.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.Fetch.BackoffMaxMs)*time.Millisecond,
	)
	executors := map[appstore.Marketplace]*fallback.Executor{
		appstore.MarketplaceGooglePlay: fallback.New(
			googleplay.New("", client), googleplay.NewHTML("", client), fetchPolicy, log),
		appstore.MarketplaceAppleStore: fallback.New(
			appleitunes.New("", client), appleitunes.NewHTML("", client), fetchPolicy, log),
	}

	marketplaces, err := parseMarketplaces(cfg.Scheduler.Marketplaces)
	if err != nil {
		store.Close()
		return nil, err
	}

	queues := dispatcher.Queues{
		Discovery: queuemem.NewQueue[appstore.DiscoveryJob](cfg.Queues.DiscoveryDepth),
		Details:   queuemem.NewQueue[appstore.DetailJob](cfg.Queues.DetailDepth),
		Reviews:   queuemem.NewQueue[appstore.ReviewJob](cfg.Queues.ReviewDepth),
	}
	jobRetry := appstore.RetryState{
		MaxAttempts: cfg.Workers.MaxAttempts,
		Backoff:     cfg.JobBackoff(),
	}

	ids := uuid.NewUUIDGenerator()
	clock := clocksys.New()
	hasher := sha256.New()

	discoveryWorker := worker.NewDiscoveryWorker(
		discovery.NewEngine(executors, log), queues.Details, ids, jobRetry, log)
	detailWorker := worker.NewDetailWorker(worker.DetailWorkerConfig{
		Executors:      executors,
		Snapshots:      ingest.NewSnapshotWriter(store, hasher, clock, log),
		Aggregator:     ingest.NewAggregator(store, clock, log),
		Reviews:        queues.Reviews,
		Publisher:      publisher,
		IDs:            ids,
		Clock:          clock,
		Topic:          cfg.PubSub.TopicName,
		ReviewMaxPages: cfg.Scheduler.ReviewMaxPages,
		Retry:          jobRetry,
		Log:            log,
	})
	reviewWorker := worker.NewReviewWorker(executors,
		ingest.NewReviewIngestor(store, hasher, log), log)

	disp := dispatcher.New(dispatcher.Config{
		DiscoveryWorkers: cfg.Workers.Discovery,
		DetailWorkers:    cfg.Workers.Detail,
		ReviewWorkers:    cfg.Workers.Review,
	}, queues, discoveryWorker, detailWorker, reviewWorker, log)

	seeder := scheduler.NewSeeder(scheduler.SeederConfig{
		Discovery:    queues.Discovery,
		IDs:          ids,
		Retry:        jobRetry,
		Marketplaces: marketplaces,
		Countries:    cfg.Scheduler.Countries,
		Limit:        cfg.Scheduler.DiscoveryLimit,
		Log:          log,
	})
	sched := scheduler.New(scheduler.Config{
		Seeder:         seeder,
		Store:          store,
		Reviews:        queues.Reviews,
		IDs:            ids,
		Retry:          jobRetry,
		SweepEvery:     cfg.SweepInterval(),
		RefreshTopN:    cfg.Scheduler.DeepRefreshTopN,
		ReviewMaxPages: cfg.Scheduler.ReviewMaxPages,
		Log:            log,
	})

	srv := api.NewServer(store, seeder, log)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		publisher:  publisher,
		pubCloser:  pubCloser,
		queues:     queues,
		dispatcher: disp,
		seeder:     seeder,
		scheduler:  sched,
		server:     httpServer,
	}, nil
}

// Run starts the worker pools, the scheduler and the HTTP server and
// blocks until the context ends, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()

	a.dispatcher.Start(workCtx)
	go a.scheduler.Run(workCtx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", zap.Error(err))
	}

	// Stop producers first, then drain the pools by closing the queues.
	stopWork()
	a.closeQueues()
	a.dispatcher.Wait()
	a.Close()
	return serveErr
}

// SweepOnce seeds one full sweep, drains the pipeline and returns. Used
// by the one-shot sweep command.
func (a *App) SweepOnce(ctx context.Context) error {
	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	a.dispatcher.Start(workCtx)

	n, err := a.seeder.EnqueueSweep(ctx)
	if err != nil {
		return fmt.Errorf("seed sweep: %w", err)
	}
	a.log.Info("sweep enqueued", zap.Int("jobs", n))

	if err := a.dispatcher.WaitIdle(ctx); err != nil {
		return err
	}

	stopWork()
	a.closeQueues()
	a.dispatcher.Wait()
	a.Close()
	return nil
}

// Close releases the store and publisher.
func (a *App) Close() {
	if a.pubCloser != nil {
		if err := a.pubCloser(); err != nil {
			a.log.Warn("close publisher", zap.Error(err))
		}
		a.pubCloser = nil
	}
	a.store.Close()
}

func (a *App) closeQueues() {
	a.queues.Discovery.Close()
	a.queues.Details.Close()
	a.queues.Reviews.Close()
}

func buildStore(ctx context.Context, cfg config.Config) (appstore.Store, error) {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := storepg.New(ctx, storepg.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		return store, nil
	case "memory":
		return storemem.New(), nil
	default:
		return nil, fmt.Errorf("unknown db.provider %q", cfg.DB.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (appstore.Publisher, func() error, error) {
	if !cfg.PubSub.Enabled {
		return pubmem.New(), nil, nil
	}
	pub, err := pubgcp.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		return nil, nil, fmt.Errorf("create publisher: %w", err)
	}
	return pub, pub.Close, nil
}

func parseMarketplaces(raw []string) ([]appstore.Marketplace, error) {
	out := make([]appstore.Marketplace, 0, len(raw))
	for _, r := range raw {
		m := appstore.Marketplace(r)
		switch m {
		case appstore.MarketplaceGooglePlay, appstore.MarketplaceAppleStore:
			out = append(out, m)
		default:
			return nil, fmt.Errorf("unknown marketplace %q", r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scheduler.marketplaces must not be empty")
	}
	return out, nil
}
