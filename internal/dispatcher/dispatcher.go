// Package dispatcher runs the worker pools over the pipeline queues.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/worker"
)

// Queue names used for metrics and logs.
const (
	QueueDiscovery = "discovery"
	QueueDetails   = "details"
	QueueReviews   = "reviews"
)

// Queues bundles the three pipeline queues.
type Queues struct {
	Discovery appstore.Queue[appstore.DiscoveryJob]
	Details   appstore.Queue[appstore.DetailJob]
	Reviews   appstore.Queue[appstore.ReviewJob]
}

// Config sets the per-queue concurrency ceilings. Discovery fans out
// and is cheap; detail and review fetches hammer the upstreams, so
// their ceilings shrink down the pipeline.
type Config struct {
	DiscoveryWorkers int
	DetailWorkers    int
	ReviewWorkers    int
}

func (c Config) withDefaults() Config {
	if c.DiscoveryWorkers <= 0 {
		c.DiscoveryWorkers = 8
	}
	if c.DetailWorkers <= 0 {
		c.DetailWorkers = 4
	}
	if c.ReviewWorkers <= 0 {
		c.ReviewWorkers = 2
	}
	return c
}

// Dispatcher owns the worker goroutines for the three queues.
type Dispatcher struct {
	cfg    Config
	queues Queues

	discovery *worker.DiscoveryWorker
	details   *worker.DetailWorker
	reviews   *worker.ReviewWorker

	inflight atomic.Int64
	wg       sync.WaitGroup
	log      *zap.Logger
}

// New builds a Dispatcher.
func New(cfg Config, queues Queues, discovery *worker.DiscoveryWorker, details *worker.DetailWorker, reviews *worker.ReviewWorker, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		cfg:       cfg.withDefaults(),
		queues:    queues,
		discovery: discovery,
		details:   details,
		reviews:   reviews,
		log:       log,
	}
}

// Start launches the worker pools. They run until the context ends or
// their queues close.
func (d *Dispatcher) Start(ctx context.Context) {
	cfg := d.cfg
	d.log.Info("starting worker pools",
		zap.Int("discovery", cfg.DiscoveryWorkers),
		zap.Int("details", cfg.DetailWorkers),
		zap.Int("reviews", cfg.ReviewWorkers))

	for i := 0; i < cfg.DiscoveryWorkers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			worker.Process(ctx, QueueDiscovery, d.queues.Discovery, d.discovery.Handle, &d.inflight, d.log)
		}()
	}
	for i := 0; i < cfg.DetailWorkers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			worker.Process(ctx, QueueDetails, d.queues.Details, d.details.Handle, &d.inflight, d.log)
		}()
	}
	for i := 0; i < cfg.ReviewWorkers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			worker.Process(ctx, QueueReviews, d.queues.Reviews, d.reviews.Handle, &d.inflight, d.log)
		}()
	}
}

// Wait blocks until every worker goroutine has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// WaitIdle blocks until all queues are empty and no job is in flight,
// the drained state the one-shot sweep command waits for. The pipeline
// chains jobs, so idleness must hold across two consecutive polls
// before it counts.
func (d *Dispatcher) WaitIdle(ctx context.Context) error {
	const poll = 50 * time.Millisecond

	idleStreak := 0
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for idle: %w", ctx.Err())
		case <-ticker.C:
		}

		idle := d.inflight.Load() == 0 &&
			d.queues.Discovery.Len() == 0 &&
			d.queues.Details.Len() == 0 &&
			d.queues.Reviews.Len() == 0
		if !idle {
			idleStreak = 0
			continue
		}
		idleStreak++
		if idleStreak >= 2 {
			return nil
		}
	}
}
