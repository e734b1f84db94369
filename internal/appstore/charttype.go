package appstore

import (
	"fmt"
	"strings"
)

// BaseChart enumerates the named ranking lists tracked per app.
type BaseChart string

// Base chart types.
const (
	ChartTopFree     BaseChart = "TOP_FREE"
	ChartTopPaid     BaseChart = "TOP_PAID"
	ChartTopGrossing BaseChart = "TOP_GROSSING"
	ChartTrending    BaseChart = "TRENDING"
	ChartNew         BaseChart = "NEW"
)

// categoryPrefix marks a composite token carrying a category scope.
const categoryPrefix = "CATEGORY_"

// baseCharts is ordered longest-first so the decoder splits a composite
// token at the longest matching base chart. A category whose name begins
// with a chart-like substring therefore cannot shift the split point.
var baseCharts = []BaseChart{
	ChartTopGrossing,
	ChartTrending,
	ChartTopFree,
	ChartTopPaid,
	ChartNew,
}

// ChartToken encodes a base chart with an optional category scope into
// the single token carried by jobs, snapshots and queues, e.g.
// "TOP_FREE" or "CATEGORY_TOP_PAID_FINANCE".
func ChartToken(base BaseChart, category string) string {
	category = strings.ToUpper(strings.TrimSpace(category))
	if category == "" {
		return string(base)
	}
	return fmt.Sprintf("%s%s_%s", categoryPrefix, base, category)
}

// DecodeChartToken splits a chart token back into its base chart and
// optional category. Unrecognized tokens decode to ChartTopFree with
// ok=false: ranking writes must not fail on a malformed token, callers
// log the default instead.
func DecodeChartToken(token string) (base BaseChart, category string, ok bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return ChartTopFree, "", false
	}

	scoped := strings.HasPrefix(token, categoryPrefix)
	rest := strings.TrimPrefix(token, categoryPrefix)

	for _, b := range baseCharts {
		if rest == string(b) {
			return b, "", true
		}
		if strings.HasPrefix(rest, string(b)+"_") {
			if !scoped {
				// A bare "TOP_PAID_FINANCE" without the CATEGORY_
				// marker is not a token this pipeline emits.
				return ChartTopFree, "", false
			}
			return b, strings.TrimPrefix(rest, string(b)+"_"), true
		}
	}
	return ChartTopFree, "", false
}

// PrimaryCharts are the chart types swept on the frequent schedule.
func PrimaryCharts() []BaseChart {
	return []BaseChart{ChartTopFree, ChartTopPaid, ChartTopGrossing}
}
