package appstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChartTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token := ChartToken(ChartTopPaid, "finance")
	require.Equal(t, "CATEGORY_TOP_PAID_FINANCE", token)

	base, category, ok := DecodeChartToken(token)
	require.True(t, ok)
	require.Equal(t, ChartTopPaid, base)
	require.Equal(t, "FINANCE", category)
}

func TestChartTokenWithoutCategory(t *testing.T) {
	t.Parallel()

	require.Equal(t, "TOP_GROSSING", ChartToken(ChartTopGrossing, ""))

	base, category, ok := DecodeChartToken("TOP_GROSSING")
	require.True(t, ok)
	require.Equal(t, ChartTopGrossing, base)
	require.Empty(t, category)
}

func TestDecodeChartTokenUnrecognizedDefaultsToTopFree(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"", "BOGUS", "CATEGORY_", "CATEGORY_BOGUS_GAMES", "TOP_PAID_FINANCE"} {
		base, category, ok := DecodeChartToken(token)
		require.False(t, ok, "token %q", token)
		require.Equal(t, ChartTopFree, base, "token %q", token)
		require.Empty(t, category, "token %q", token)
	}
}

func TestDecodeChartTokenLongestPrefixWins(t *testing.T) {
	t.Parallel()

	// A category whose name starts like another chart token must not
	// shift the split point.
	base, category, ok := DecodeChartToken(ChartToken(ChartTopFree, "NEW_AGE_MUSIC"))
	require.True(t, ok)
	require.Equal(t, ChartTopFree, base)
	require.Equal(t, "NEW_AGE_MUSIC", category)
}
