// Package googleplay implements the Google Play connectors.
//
// The primary tier speaks to Play's structured JSON surface through a
// configurable gateway base URL; the backup tier scrapes the public web
// store. Both return raw store-shaped payloads that pass through the
// normalizer before anything downstream sees them.
package googleplay

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/connector"
	"github.com/appradar/appradar/internal/normalize"
)

// DefaultBaseURL is the default gateway for the structured surface.
const DefaultBaseURL = "https://play.google.com"

// chartSlugs maps base charts onto Play collection slugs.
var chartSlugs = map[appstore.BaseChart]string{
	appstore.ChartTopFree:     "topselling_free",
	appstore.ChartTopPaid:     "topselling_paid",
	appstore.ChartTopGrossing: "topgrossing",
	appstore.ChartTrending:    "movers_shakers",
	appstore.ChartNew:         "topselling_new_free",
}

// Connector is the primary (structured JSON) tier for Google Play.
type Connector struct {
	base   string
	client *connector.Client
}

// New builds the primary connector.
func New(baseURL string, client *connector.Client) *Connector {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Connector{
		base:   strings.TrimRight(baseURL, "/"),
		client: client,
	}
}

// Marketplace identifies this connector's store.
func (c *Connector) Marketplace() appstore.Marketplace {
	return appstore.MarketplaceGooglePlay
}

type chartResponse struct {
	Apps []struct {
		AppID string `json:"appId"`
		Rank  int    `json:"rank"`
	} `json:"apps"`
}

type detailsResponse struct {
	App normalize.GooglePlayApp `json:"app"`
}

type reviewsResponse struct {
	Reviews    []normalize.GooglePlayReview `json:"reviews"`
	NextCursor string                       `json:"nextCursor"`
}

// TopCharts fetches a ranked chart listing.
func (c *Connector) TopCharts(ctx context.Context, country string, chart appstore.BaseChart, limit int) ([]appstore.RankedApp, error) {
	slug, ok := chartSlugs[chart]
	if !ok {
		return nil, nil
	}
	u := fmt.Sprintf("%s/store/apps/collection/%s?gl=%s&num=%d&format=json",
		c.base, slug, url.QueryEscape(country), limit)
	return c.fetchRanked(ctx, u)
}

// CategoryList fetches a ranked chart listing scoped to a category.
func (c *Connector) CategoryList(ctx context.Context, country string, chart appstore.BaseChart, category string, limit int) ([]appstore.RankedApp, error) {
	slug, ok := chartSlugs[chart]
	if !ok {
		return nil, nil
	}
	u := fmt.Sprintf("%s/store/apps/category/%s/collection/%s?gl=%s&num=%d&format=json",
		c.base, url.PathEscape(strings.ToUpper(category)), slug, url.QueryEscape(country), limit)
	return c.fetchRanked(ctx, u)
}

// AppDetails fetches and normalizes one app's full record.
func (c *Connector) AppDetails(ctx context.Context, appID, country string) (appstore.AppPayload, error) {
	u := fmt.Sprintf("%s/store/apps/details?id=%s&gl=%s&format=json",
		c.base, url.QueryEscape(appID), url.QueryEscape(country))
	var resp detailsResponse
	if err := c.client.GetJSON(ctx, c.Marketplace(), u, &resp); err != nil {
		return appstore.AppPayload{}, err
	}
	if resp.App.AppID == "" {
		resp.App.AppID = appID
	}
	return normalize.FromGooglePlay(resp.App), nil
}

// Reviews fetches one page of reviews; cursor "" starts the listing.
func (c *Connector) Reviews(ctx context.Context, appID, country, cursor string) (appstore.ReviewPage, error) {
	u := fmt.Sprintf("%s/store/apps/details/reviews?id=%s&gl=%s&cursor=%s&format=json",
		c.base, url.QueryEscape(appID), url.QueryEscape(country), url.QueryEscape(cursor))
	var resp reviewsResponse
	if err := c.client.GetJSON(ctx, c.Marketplace(), u, &resp); err != nil {
		return appstore.ReviewPage{}, err
	}
	page := appstore.ReviewPage{NextCursor: resp.NextCursor}
	for _, raw := range resp.Reviews {
		page.Reviews = append(page.Reviews, normalize.FromGooglePlayReview(raw, appID, country))
	}
	return page, nil
}

// SimilarApps fetches the ranked similar-apps cluster.
func (c *Connector) SimilarApps(ctx context.Context, appID, country string) ([]appstore.RankedApp, error) {
	u := fmt.Sprintf("%s/store/apps/similar?id=%s&gl=%s&format=json",
		c.base, url.QueryEscape(appID), url.QueryEscape(country))
	return c.fetchRanked(ctx, u)
}

// DeveloperApps fetches the developer's other apps.
func (c *Connector) DeveloperApps(ctx context.Context, developerID, country string) ([]appstore.RankedApp, error) {
	u := fmt.Sprintf("%s/store/apps/dev?id=%s&gl=%s&format=json",
		c.base, url.QueryEscape(developerID), url.QueryEscape(country))
	return c.fetchRanked(ctx, u)
}

func (c *Connector) fetchRanked(ctx context.Context, u string) ([]appstore.RankedApp, error) {
	var resp chartResponse
	if err := c.client.GetJSON(ctx, c.Marketplace(), u, &resp); err != nil {
		return nil, err
	}
	out := make([]appstore.RankedApp, 0, len(resp.Apps))
	for i, app := range resp.Apps {
		if app.AppID == "" {
			continue
		}
		rank := app.Rank
		if rank <= 0 {
			rank = i + 1
		}
		out = append(out, appstore.RankedApp{AppID: app.AppID, Rank: rank})
	}
	return out, nil
}
