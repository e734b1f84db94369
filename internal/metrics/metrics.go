// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTierTotal        *prometheus.CounterVec
	fetchDurationSeconds  *prometheus.HistogramVec
	snapshotDedupTotal    *prometheus.CounterVec
	jobsTotal             *prometheus.CounterVec
	activeWorkers         *prometheus.GaugeVec
	reviewsIngestedTotal  *prometheus.CounterVec
	rankingUpsertsTotal   *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTierTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appradar_fetch_tier_total",
				Help: "Fallback outcomes, labeled by marketplace, operation and tier.",
			},
			[]string{"marketplace", "operation", "tier"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appradar_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by marketplace and tier.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"marketplace", "tier"},
		)

		snapshotDedupTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appradar_snapshot_dedup_total",
				Help: "Snapshot writes by result: written or dedup_hit.",
			},
			[]string{"marketplace", "result"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appradar_jobs_total",
				Help: "Jobs processed, labeled by queue and terminal status.",
			},
			[]string{"queue", "status"},
		)

		activeWorkers = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "appradar_active_workers",
				Help: "Workers currently processing a job, per queue.",
			},
			[]string{"queue"},
		)

		reviewsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appradar_reviews_ingested_total",
				Help: "New review rows written, labeled by marketplace.",
			},
			[]string{"marketplace"},
		)

		rankingUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appradar_ranking_upserts_total",
				Help: "Ranking rows upserted, labeled by marketplace and chart.",
			},
			[]string{"marketplace", "chart"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchTier counts one fallback outcome.
func ObserveFetchTier(marketplace, operation, tier string) {
	fetchTierTotal.WithLabelValues(marketplace, operation, tier).Inc()
}

// ObserveFetchDuration records one upstream fetch latency.
func ObserveFetchDuration(marketplace, tier string, d time.Duration) {
	fetchDurationSeconds.WithLabelValues(marketplace, tier).Observe(d.Seconds())
}

// ObserveSnapshot counts a snapshot write or dedup hit.
func ObserveSnapshot(marketplace string, written bool) {
	result := "dedup_hit"
	if written {
		result = "written"
	}
	snapshotDedupTotal.WithLabelValues(marketplace, result).Inc()
}

// ObserveJob increments the job counter for the given queue and status.
func ObserveJob(queue, status string) {
	jobsTotal.WithLabelValues(queue, status).Inc()
}

// IncActiveWorkers increments the active workers gauge for a queue.
func IncActiveWorkers(queue string) {
	activeWorkers.WithLabelValues(queue).Inc()
}

// DecActiveWorkers decrements the active workers gauge for a queue.
func DecActiveWorkers(queue string) {
	activeWorkers.WithLabelValues(queue).Dec()
}

// ObserveReviewsIngested adds newly written review rows.
func ObserveReviewsIngested(marketplace string, n int) {
	if n > 0 {
		reviewsIngestedTotal.WithLabelValues(marketplace).Add(float64(n))
	}
}

// ObserveRankingUpsert counts one ranking upsert.
func ObserveRankingUpsert(marketplace, chart string) {
	rankingUpsertsTotal.WithLabelValues(marketplace, chart).Inc()
}
