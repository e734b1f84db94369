// Package memory implements the pipeline store with in-process maps.
// It backs tests, local development, and the one-shot sweep command.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/appradar/appradar/internal/appstore"
)

type appKey struct {
	m  appstore.Marketplace
	id string
}

type statKey struct {
	m       appstore.Marketplace
	id      string
	day     string
	country string
}

type rankingKey struct {
	m        appstore.Marketplace
	id       string
	chart    appstore.BaseChart
	category string
	country  string
	date     string
}

type reviewKey struct {
	m        appstore.Marketplace
	id       string
	reviewID string
}

// Store is a mutex-guarded in-memory implementation of appstore.Store.
type Store struct {
	mu        sync.RWMutex
	apps      map[appKey]appstore.CanonicalApp
	snapshots map[appKey][]appstore.Snapshot
	stats     map[statKey]appstore.DailyStat
	rankings  map[rankingKey]appstore.RankingEntry
	reviews   map[reviewKey]appstore.Review
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		apps:      make(map[appKey]appstore.CanonicalApp),
		snapshots: make(map[appKey][]appstore.Snapshot),
		stats:     make(map[statKey]appstore.DailyStat),
		rankings:  make(map[rankingKey]appstore.RankingEntry),
		reviews:   make(map[reviewKey]appstore.Review),
	}
}

// UpsertApp creates or updates the canonical record. Creation stamps
// FirstSeenAt from the incoming record; updates keep the stored one.
// LastSeenAt moves forward only, and only when refreshSeen is set.
func (s *Store) UpsertApp(_ context.Context, app appstore.CanonicalApp, refreshSeen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := appKey{m: app.Payload.Marketplace, id: app.Payload.AppID}
	existing, ok := s.apps[key]
	if !ok {
		s.apps[key] = app
		return nil
	}

	updated := app
	updated.FirstSeenAt = existing.FirstSeenAt
	updated.LastSeenAt = existing.LastSeenAt
	if refreshSeen && app.LastSeenAt.After(existing.LastSeenAt) {
		updated.LastSeenAt = app.LastSeenAt
	}
	s.apps[key] = updated
	return nil
}

// GetApp returns the canonical record or ErrAppNotFound.
func (s *Store) GetApp(_ context.Context, m appstore.Marketplace, appID string) (appstore.CanonicalApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[appKey{m: m, id: appID}]
	if !ok {
		return appstore.CanonicalApp{}, appstore.ErrAppNotFound
	}
	return app, nil
}

// ListApps pages through canonical records in stable key order.
func (s *Store) ListApps(_ context.Context, limit, offset int) ([]appstore.CanonicalApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]appKey, 0, len(s.apps))
	for k := range s.apps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].m != keys[j].m {
			return keys[i].m < keys[j].m
		}
		return keys[i].id < keys[j].id
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(keys) {
		return nil, nil
	}
	keys = keys[offset:]
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}

	out := make([]appstore.CanonicalApp, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.apps[k])
	}
	return out, nil
}

// LatestSnapshotDigest returns the newest snapshot digest for the pair,
// or "" when none exists.
func (s *Store) LatestSnapshotDigest(_ context.Context, m appstore.Marketplace, appID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[appKey{m: m, id: appID}]
	if len(snaps) == 0 {
		return "", nil
	}
	return snaps[len(snaps)-1].Digest, nil
}

// AppendSnapshot stores an immutable observation.
func (s *Store) AppendSnapshot(_ context.Context, snap appstore.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := appKey{m: snap.Marketplace, id: snap.AppID}
	s.snapshots[key] = append(s.snapshots[key], snap)
	return nil
}

// Snapshots returns all stored snapshots for the pair, oldest first.
func (s *Store) Snapshots(m appstore.Marketplace, appID string) []appstore.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[appKey{m: m, id: appID}]
	out := make([]appstore.Snapshot, len(snaps))
	copy(out, snaps)
	return out
}

// UpsertDailyStat overwrites the stat row for its natural key.
func (s *Store) UpsertDailyStat(_ context.Context, stat appstore.DailyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statKey{
		m:       stat.Marketplace,
		id:      stat.AppID,
		day:     dayString(stat.Day),
		country: stat.Country,
	}
	s.stats[key] = stat
	return nil
}

// UpsertRanking overwrites the ranking row for its natural key.
func (s *Store) UpsertRanking(_ context.Context, entry appstore.RankingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rankingKey{
		m:        entry.Marketplace,
		id:       entry.AppID,
		chart:    entry.Chart,
		category: entry.Category,
		country:  entry.Country,
		date:     dayString(entry.Date),
	}
	s.rankings[key] = entry
	return nil
}

// InsertReviews writes only reviews whose ReviewID is new for the app
// and reports how many rows landed.
func (s *Store) InsertReviews(_ context.Context, reviews []appstore.Review) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range reviews {
		key := reviewKey{m: r.Marketplace, id: r.AppID, reviewID: r.ReviewID}
		if _, ok := s.reviews[key]; ok {
			continue
		}
		s.reviews[key] = r
		inserted++
	}
	return inserted, nil
}

// ListReviews returns reviews for the app, newest first.
func (s *Store) ListReviews(_ context.Context, m appstore.Marketplace, appID string, limit int) ([]appstore.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []appstore.Review
	for key, r := range s.reviews {
		if key.m == m && key.id == appID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ReviewID < out[j].ReviewID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// DailyStats returns stat rows for the app within the trailing window,
// oldest first. country "" matches every country.
func (s *Store) DailyStats(_ context.Context, m appstore.Marketplace, appID, country string, days int) ([]appstore.DailyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := windowCutoff(days)
	var out []appstore.DailyStat
	for key, stat := range s.stats {
		if key.m != m || key.id != appID {
			continue
		}
		if country != "" && !strings.EqualFold(key.country, country) {
			continue
		}
		if stat.Day.Before(cutoff) {
			continue
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].Country < out[j].Country
	})
	return out, nil
}

// Rankings returns ranking rows for the app within the trailing window,
// oldest first.
func (s *Store) Rankings(_ context.Context, m appstore.Marketplace, appID string, days int) ([]appstore.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := windowCutoff(days)
	var out []appstore.RankingEntry
	for key, entry := range s.rankings {
		if key.m != m || key.id != appID {
			continue
		}
		if entry.Date.Before(cutoff) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Chart != out[j].Chart {
			return out[i].Chart < out[j].Chart
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// TopRatedApps lists apps by descending rating volume, the proxy the
// deep-refresh pass uses to target review ingestion.
func (s *Store) TopRatedApps(_ context.Context, limit int) ([]appstore.CanonicalApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]appstore.CanonicalApp, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Payload.RatingCount.Value, out[j].Payload.RatingCount.Value
		if ri != rj {
			return ri > rj
		}
		if out[i].Payload.Marketplace != out[j].Payload.Marketplace {
			return out[i].Payload.Marketplace < out[j].Payload.Marketplace
		}
		return out[i].Payload.AppID < out[j].Payload.AppID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

func dayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func windowCutoff(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}
