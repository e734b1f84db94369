package appstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is the definitive-absence signal: the upstream confirmed
// the target does not exist. Callers must not retry it.
var ErrNotFound = errors.New("resource confirmed absent")

// ErrAppNotFound is returned by Store reads for unknown apps.
var ErrAppNotFound = errors.New("app not found")

// Connector is one tier of one marketplace's read operations. Each store
// provides a primary (API) and a backup (HTML scrape) implementation.
type Connector interface {
	Marketplace() Marketplace
	TopCharts(ctx context.Context, country string, chart BaseChart, limit int) ([]RankedApp, error)
	CategoryList(ctx context.Context, country string, chart BaseChart, category string, limit int) ([]RankedApp, error)
	AppDetails(ctx context.Context, appID, country string) (AppPayload, error)
	Reviews(ctx context.Context, appID, country, cursor string) (ReviewPage, error)
	SimilarApps(ctx context.Context, appID, country string) ([]RankedApp, error)
	DeveloperApps(ctx context.Context, developerID, country string) ([]RankedApp, error)
}

// IdentifierChecker is implemented by backup connectors whose lookup
// scheme only accepts a subset of identifier formats (e.g. numeric track
// IDs). Incompatible identifiers skip the tier entirely.
type IdentifierChecker interface {
	SupportsIdentifier(appID string) bool
}

// Store persists derived pipeline data. The pipeline only ever upserts
// by natural key or appends-if-changed; it never deletes.
type Store interface {
	// UpsertApp creates or updates the canonical record. Creation sets
	// FirstSeenAt; updates preserve it. LastSeenAt is refreshed only
	// when refreshSeen is true and never decreases.
	UpsertApp(ctx context.Context, app CanonicalApp, refreshSeen bool) error
	GetApp(ctx context.Context, m Marketplace, appID string) (CanonicalApp, error)
	ListApps(ctx context.Context, limit, offset int) ([]CanonicalApp, error)

	// LatestSnapshotDigest returns the digest of the most recent
	// snapshot for the pair, or "" when none exists.
	LatestSnapshotDigest(ctx context.Context, m Marketplace, appID string) (string, error)
	AppendSnapshot(ctx context.Context, snap Snapshot) error

	UpsertDailyStat(ctx context.Context, stat DailyStat) error
	UpsertRanking(ctx context.Context, entry RankingEntry) error

	// InsertReviews inserts only reviews whose ReviewID is new for the
	// app and reports how many rows were actually written.
	InsertReviews(ctx context.Context, reviews []Review) (int, error)
	ListReviews(ctx context.Context, m Marketplace, appID string, limit int) ([]Review, error)

	DailyStats(ctx context.Context, m Marketplace, appID, country string, days int) ([]DailyStat, error)
	Rankings(ctx context.Context, m Marketplace, appID string, days int) ([]RankingEntry, error)

	// TopRatedApps lists the apps with the largest rating volume, the
	// deep-refresh targeting proxy.
	TopRatedApps(ctx context.Context, limit int) ([]CanonicalApp, error)

	Close()
}

// Queue provides enqueue/dequeue semantics for one named job queue.
// Delivery is at-least-once: handlers must tolerate redelivery.
type Queue[T any] interface {
	Enqueue(ctx context.Context, job T) error
	Dequeue(ctx context.Context) (T, error)
	Len() int
	Close()
}

// Publisher pushes ingestion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
