package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appradar/appradar/internal/appstore"
)

func canonical(m appstore.Marketplace, appID string, seen time.Time) appstore.CanonicalApp {
	return appstore.CanonicalApp{
		Payload: appstore.AppPayload{
			Marketplace: m,
			AppID:       appID,
			Title:       "App " + appID,
			Developer:   "Acme",
			Category:    "FINANCE",
			Description: "desc",
		},
		Quality:     appstore.QualityRaw,
		FirstSeenAt: seen,
		LastSeenAt:  seen,
	}
}

func TestUpsertAppCreateThenUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	day1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, s.UpsertApp(ctx, canonical(appstore.MarketplaceGooglePlay, "com.a", day1), true))

	updated := canonical(appstore.MarketplaceGooglePlay, "com.a", day2)
	updated.Payload.Title = "Renamed"
	require.NoError(t, s.UpsertApp(ctx, updated, true))

	got, err := s.GetApp(ctx, appstore.MarketplaceGooglePlay, "com.a")
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Payload.Title)
	require.Equal(t, day1, got.FirstSeenAt, "creation timestamp survives updates")
	require.Equal(t, day2, got.LastSeenAt)
}

func TestUpsertAppSeenSemantics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	day1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, s.UpsertApp(ctx, canonical(appstore.MarketplaceGooglePlay, "com.a", day2), true))

	// refreshSeen=false leaves LastSeenAt untouched.
	stale := canonical(appstore.MarketplaceGooglePlay, "com.a", day2.AddDate(0, 0, 5))
	require.NoError(t, s.UpsertApp(ctx, stale, false))
	got, err := s.GetApp(ctx, appstore.MarketplaceGooglePlay, "com.a")
	require.NoError(t, err)
	require.Equal(t, day2, got.LastSeenAt)

	// Even with refreshSeen, LastSeenAt never moves backward.
	older := canonical(appstore.MarketplaceGooglePlay, "com.a", day1)
	require.NoError(t, s.UpsertApp(ctx, older, true))
	got, err = s.GetApp(ctx, appstore.MarketplaceGooglePlay, "com.a")
	require.NoError(t, err)
	require.Equal(t, day2, got.LastSeenAt)
}

func TestGetAppNotFound(t *testing.T) {
	t.Parallel()

	_, err := New().GetApp(context.Background(), appstore.MarketplaceGooglePlay, "com.ghost")
	require.ErrorIs(t, err, appstore.ErrAppNotFound)
}

func TestListAppsPagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	for _, id := range []string{"com.c", "com.a", "com.b"} {
		require.NoError(t, s.UpsertApp(ctx, canonical(appstore.MarketplaceGooglePlay, id, now), true))
	}

	page, err := s.ListApps(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "com.a", page[0].Payload.AppID)
	require.Equal(t, "com.b", page[1].Payload.AppID)

	page, err = s.ListApps(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "com.c", page[0].Payload.AppID)

	page, err = s.ListApps(ctx, 2, 99)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestSnapshotDigestChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	digest, err := s.LatestSnapshotDigest(ctx, appstore.MarketplaceGooglePlay, "com.a")
	require.NoError(t, err)
	require.Empty(t, digest, "no snapshots yet")

	for i, d := range []string{"sha-one", "sha-two"} {
		require.NoError(t, s.AppendSnapshot(ctx, appstore.Snapshot{
			Marketplace: appstore.MarketplaceGooglePlay,
			AppID:       "com.a",
			Digest:      d,
			CapturedAt:  time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}))
	}

	digest, err = s.LatestSnapshotDigest(ctx, appstore.MarketplaceGooglePlay, "com.a")
	require.NoError(t, err)
	require.Equal(t, "sha-two", digest)
	require.Len(t, s.Snapshots(appstore.MarketplaceGooglePlay, "com.a"), 2)
}

func TestUpsertDailyStatOverwritesSameDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	day := time.Now().UTC().Truncate(24 * time.Hour)

	stat := appstore.DailyStat{
		Marketplace: appstore.MarketplaceGooglePlay,
		AppID:       "com.a",
		Day:         day,
		Country:     "us",
		Score:       appstore.SomeFloat(4.1),
	}
	require.NoError(t, s.UpsertDailyStat(ctx, stat))

	stat.Score = appstore.SomeFloat(4.5)
	require.NoError(t, s.UpsertDailyStat(ctx, stat))

	stats, err := s.DailyStats(ctx, appstore.MarketplaceGooglePlay, "com.a", "us", 7)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, 4.5, stats[0].Score.Value)
}

func TestUpsertRankingOverwritesSameKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	date := time.Now().UTC().Truncate(24 * time.Hour)

	entry := appstore.RankingEntry{
		Marketplace: appstore.MarketplaceGooglePlay,
		AppID:       "com.a",
		Chart:       appstore.ChartTopPaid,
		Category:    "FINANCE",
		Country:     "us",
		Date:        date,
		Rank:        9,
	}
	require.NoError(t, s.UpsertRanking(ctx, entry))

	entry.Rank = 3
	require.NoError(t, s.UpsertRanking(ctx, entry))

	rankings, err := s.Rankings(ctx, appstore.MarketplaceGooglePlay, "com.a", 7)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	require.Equal(t, 3, rankings[0].Rank)
}

func TestInsertReviewsDedup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	batch := []appstore.Review{
		{Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.a", ReviewID: "r1", Rating: 5, Text: "great", CreatedAt: now},
		{Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.a", ReviewID: "r2", Rating: 1, Text: "bad", CreatedAt: now.Add(time.Minute)},
	}
	n, err := s.InsertReviews(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Redelivery of the same batch writes nothing new.
	n, err = s.InsertReviews(ctx, batch)
	require.NoError(t, err)
	require.Zero(t, n)

	reviews, err := s.ListReviews(ctx, appstore.MarketplaceGooglePlay, "com.a", 10)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	require.Equal(t, "r2", reviews[0].ReviewID, "newest first")
}

func TestTopRatedAppsOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	small := canonical(appstore.MarketplaceGooglePlay, "com.small", now)
	small.Payload.RatingCount = appstore.SomeInt(10)
	big := canonical(appstore.MarketplaceGooglePlay, "com.big", now)
	big.Payload.RatingCount = appstore.SomeInt(100_000)
	mid := canonical(appstore.MarketplaceAppleStore, "12345", now)
	mid.Payload.RatingCount = appstore.SomeInt(5_000)

	for _, app := range []appstore.CanonicalApp{small, big, mid} {
		require.NoError(t, s.UpsertApp(ctx, app, true))
	}

	top, err := s.TopRatedApps(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "com.big", top[0].Payload.AppID)
	require.Equal(t, "12345", top[1].Payload.AppID)
}
