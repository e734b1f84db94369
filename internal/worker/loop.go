// Package worker runs the handlers behind the three pipeline queues.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/metrics"
	queuemem "github.com/appradar/appradar/internal/queue/memory"
)

// Job is the retryable-job surface the loop needs from each job type.
type Job[T any] interface {
	RetryInfo() appstore.RetryState
	WithRetry(appstore.RetryState) T
}

// Process consumes one queue until the context ends or the queue
// closes. A failed job is re-enqueued with its attempt counter bumped
// until its retry budget runs out; terminal failures are logged and
// counted but never stop the loop. inflight, when non-nil, tracks jobs
// currently being handled or awaiting redelivery so callers can detect
// a drained pipeline.
func Process[T Job[T]](ctx context.Context, name string, q appstore.Queue[T], handle func(context.Context, T) error, inflight *atomic.Int64, log *zap.Logger) {
	for {
		job, err := q.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queuemem.ErrClosed) && ctx.Err() == nil {
				log.Warn("dequeue failed", zap.String("queue", name), zap.Error(err))
			}
			return
		}

		if inflight != nil {
			inflight.Add(1)
		}
		metrics.IncActiveWorkers(name)
		err = handle(ctx, job)
		metrics.DecActiveWorkers(name)

		if err == nil {
			metrics.ObserveJob(name, "ok")
			if inflight != nil {
				inflight.Add(-1)
			}
			continue
		}

		retry := job.RetryInfo()
		if retry.Exhausted() {
			metrics.ObserveJob(name, "failed")
			log.Error("job failed permanently",
				zap.String("queue", name),
				zap.Int("attempts", retry.Attempt+1),
				zap.Error(err))
			if inflight != nil {
				inflight.Add(-1)
			}
			continue
		}

		next, delay := retry.Next()
		metrics.ObserveJob(name, "retried")
		log.Warn("job retrying",
			zap.String("queue", name),
			zap.Int("attempt", next.Attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if !wait(ctx, delay) {
			if inflight != nil {
				inflight.Add(-1)
			}
			return
		}
		if err := q.Enqueue(ctx, job.WithRetry(next)); err != nil {
			log.Warn("re-enqueue failed", zap.String("queue", name), zap.Error(err))
		}
		if inflight != nil {
			inflight.Add(-1)
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
