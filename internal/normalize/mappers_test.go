package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appradar/appradar/internal/appstore"
)

func boolPtr(v bool) *bool { return &v }

func TestFromGooglePlayFullRecord(t *testing.T) {
	t.Parallel()

	raw := GooglePlayApp{
		AppID:         "com.example.finance",
		Title:         "Example Finance",
		Description:   "Track your money.",
		DeveloperName: "Example Inc",
		DeveloperID:   "5700313618786177705",
		GenreID:       "finance",
		Icon:          "https://play.example/icon.png",
		Screenshots:   []string{"https://play.example/s1.png", "bogus"},
		ScoreText:     "4.6",
		RatingsText:   "1.2M",
		ReviewsText:   "34K",
		InstallsText:  "10,000,000+",
		PriceText:     "Free",
		Free:          boolPtr(true),
		AdSupported:   boolPtr(false),
		Version:       "2.1.0",
		UpdatedMillis: 1717243200000,
	}

	p := FromGooglePlay(raw)
	require.Equal(t, appstore.MarketplaceGooglePlay, p.Marketplace)
	require.Equal(t, "Example Finance", p.Title)
	require.Equal(t, "FINANCE", p.Category)
	require.Equal(t, int64(1_200_000), p.RatingCount.Value)
	require.Equal(t, int64(10_000_000), p.InstallsMin.Value)
	require.Equal(t, int64(100_000_000), p.InstallsMax.Value)
	require.Equal(t, appstore.TriTrue, p.Free)
	require.Equal(t, appstore.TriFalse, p.ContainsAds)
	require.Equal(t, appstore.TriUnknown, p.InAppPurchases)
	require.Len(t, p.Screenshots, 1)
	require.True(t, p.UpdatedAt.Valid)
	require.Equal(t, appstore.QualityRaw, appstore.QualityOf(p))
}

func TestFromGooglePlaySparseRecord(t *testing.T) {
	t.Parallel()

	p := FromGooglePlay(GooglePlayApp{AppID: "com.example.bare"})
	require.Equal(t, appstore.NotAvailable, p.Title)
	require.Equal(t, appstore.NotAvailable, p.Developer)
	require.False(t, p.IconURL.Valid)
	require.False(t, p.Score.Valid)
	require.Equal(t, appstore.TriUnknown, p.Free)
	require.Equal(t, appstore.QualityFlagged, appstore.QualityOf(p))
}

func TestFromAppleLookup(t *testing.T) {
	t.Parallel()

	raw := AppleLookupResult{
		TrackID:               389801252,
		TrackName:             "Instagram",
		ArtistName:            "Instagram, Inc.",
		ArtistID:              389801255,
		PrimaryGenreName:      "Photo & Video",
		ArtworkURL512:         "https://is1.example/icon512.png",
		Description:           "Share moments.",
		AverageUserRating:     4.7,
		UserRatingCount:       25_000_000,
		Price:                 0,
		FormattedPrice:        "Free",
		Currency:              "USD",
		Version:               "300.0",
		ContentAdvisoryRating: "12+",
		ReleaseDate:           "2010-10-06T08:00:00Z",
	}

	p := FromAppleLookup(raw)
	require.Equal(t, "389801252", p.AppID)
	require.Equal(t, "PHOTO & VIDEO", p.Category)
	require.Equal(t, int64(25_000_000), p.RatingCount.Value)
	require.Equal(t, appstore.TriTrue, p.Free)
	require.True(t, p.ReleasedAt.Valid)
	require.Equal(t, appstore.QualityRaw, appstore.QualityOf(p))
}

func TestFromAppleReviewDefensiveRating(t *testing.T) {
	t.Parallel()

	r := FromAppleReview(AppleReview{
		ID:      "rev-1",
		Author:  "someone",
		Rating:  "9",
		Content: "good",
		Updated: "2024-01-05T10:00:00Z",
	}, "389801252", "us")
	require.Equal(t, 5, r.Rating)
	require.Equal(t, "rev-1", r.ReviewID)
	require.False(t, r.CreatedAt.IsZero())

	r = FromAppleReview(AppleReview{Rating: "bad"}, "389801252", "us")
	require.Zero(t, r.Rating)
	require.Equal(t, appstore.NotAvailable, r.Author)
}
