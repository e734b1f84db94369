package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appradar/appradar/internal/appstore"
)

func TestRequiredTextSentinel(t *testing.T) {
	t.Parallel()

	require.Equal(t, appstore.NotAvailable, RequiredText(""))
	require.Equal(t, appstore.NotAvailable, RequiredText("   "))
	require.Equal(t, "Maps", RequiredText(" Maps "))
}

func TestOptionalURLRejectsNonLinks(t *testing.T) {
	t.Parallel()

	require.False(t, OptionalURL("").Valid)
	require.False(t, OptionalURL("not a url").Valid)
	require.False(t, OptionalURL("ftp://example.com").Valid)
	u := OptionalURL("https://example.com/icon.png")
	require.True(t, u.Valid)
	require.Equal(t, "https://example.com/icon.png", u.Value)
}

func TestParseCountSuffixNotation(t *testing.T) {
	t.Parallel()

	cases := map[string]int64{
		"1.2M":      1_200_000,
		"3K":        3_000,
		"2B":        2_000_000_000,
		"1,234,567": 1_234_567,
		"42":        42,
		"5.5k":      5_500,
	}
	for in, want := range cases {
		got := ParseCount(in)
		require.True(t, got.Valid, "input %q", in)
		require.Equal(t, want, got.Value, "input %q", in)
	}
}

func TestParseCountAbsentOnFailure(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "abc", "-5", "1.2X"} {
		require.False(t, ParseCount(in).Valid, "input %q", in)
	}
}

func TestParseInstallsRange(t *testing.T) {
	t.Parallel()

	lo, hi := ParseInstalls("10,000+")
	require.True(t, lo.Valid)
	require.True(t, hi.Valid)
	require.Equal(t, int64(10_000), lo.Value)
	require.Equal(t, int64(100_000), hi.Value)

	lo, hi = ParseInstalls("500")
	require.Equal(t, int64(500), lo.Value)
	require.Equal(t, int64(500), hi.Value)

	lo, hi = ParseInstalls("unknown")
	require.False(t, lo.Valid)
	require.False(t, hi.Valid)
}

func TestParseScoreDefensive(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 4.3, ParseScore("4.3").Value, 0.001)
	require.InDelta(t, 4.3, ParseScore("4,3").Value, 0.001)
	require.False(t, ParseScore("").Valid)
	require.False(t, ParseScore("9.9").Valid)
	require.False(t, ParseScore("four").Valid)
}

func TestParseTimeDefensive(t *testing.T) {
	t.Parallel()

	got := ParseTime("2024-06-01T12:00:00Z")
	require.True(t, got.Valid)
	require.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), got.Value)

	require.True(t, ParseTime("Aug 12, 2015").Valid)
	require.False(t, ParseTime("yesterday").Valid)
	require.False(t, ParseTime("").Valid)
}

func TestPlaceholderIsSentinelFilled(t *testing.T) {
	t.Parallel()

	p := Placeholder(appstore.MarketplaceAppleStore, "123456")
	require.Equal(t, "123456", p.AppID)
	require.Equal(t, appstore.NotAvailable, p.Title)
	require.Equal(t, appstore.NotAvailable, p.Developer)
	require.False(t, p.IconURL.Valid)
	require.Equal(t, appstore.TriUnknown, p.Free)
	require.Equal(t, appstore.QualityFlagged, appstore.QualityOf(p))
}
