package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/metrics"
)

// Observation carries the discovery context a payload was captured
// under. It tags the snapshot but never participates in the digest, so
// rank churn alone does not defeat dedup.
type Observation struct {
	Tier       appstore.Tier
	Country    string
	Rank       int
	ChartToken string
	Source     string
}

// SnapshotWriter appends content-addressed snapshots, skipping writes
// whose payload digest equals the latest stored one.
type SnapshotWriter struct {
	store  appstore.Store
	hasher appstore.Hasher
	clock  appstore.Clock
	log    *zap.Logger
}

// NewSnapshotWriter builds a SnapshotWriter.
func NewSnapshotWriter(store appstore.Store, hasher appstore.Hasher, clock appstore.Clock, log *zap.Logger) *SnapshotWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotWriter{store: store, hasher: hasher, clock: clock, log: log}
}

// Write persists one observation unless it duplicates the latest
// snapshot. It reports whether a row was written.
func (w *SnapshotWriter) Write(ctx context.Context, payload appstore.AppPayload, obs Observation) (bool, error) {
	data, err := CanonicalBytes(payload)
	if err != nil {
		return false, err
	}
	digest, err := w.hasher.Hash(data)
	if err != nil {
		return false, fmt.Errorf("hash payload: %w", err)
	}

	latest, err := w.store.LatestSnapshotDigest(ctx, payload.Marketplace, payload.AppID)
	if err != nil {
		return false, fmt.Errorf("load latest digest: %w", err)
	}
	if latest == digest {
		metrics.ObserveSnapshot(string(payload.Marketplace), false)
		w.log.Debug("snapshot dedup hit",
			zap.String("marketplace", string(payload.Marketplace)),
			zap.String("app_id", payload.AppID),
			zap.String("digest", digest))
		return false, nil
	}

	snap := appstore.Snapshot{
		Marketplace: payload.Marketplace,
		AppID:       payload.AppID,
		Digest:      digest,
		Payload:     payload,
		Tier:        obs.Tier,
		Country:     obs.Country,
		Rank:        obs.Rank,
		ChartToken:  obs.ChartToken,
		Source:      obs.Source,
		CapturedAt:  w.clock.Now(),
	}
	if err := w.store.AppendSnapshot(ctx, snap); err != nil {
		return false, fmt.Errorf("append snapshot: %w", err)
	}
	metrics.ObserveSnapshot(string(payload.Marketplace), true)
	return true, nil
}
