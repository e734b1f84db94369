// Package appleitunes implements the Apple App Store connectors.
//
// The primary tier uses the public iTunes lookup API and RSS feeds,
// which are plain JSON. The backup tier scrapes apps.apple.com pages,
// which only resolve numeric track IDs.
package appleitunes

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/connector"
	"github.com/appradar/appradar/internal/normalize"
)

// DefaultBaseURL is the iTunes API host.
const DefaultBaseURL = "https://itunes.apple.com"

// feedSlugs maps base charts onto RSS feed names. Trending has no feed;
// discovery treats the resulting empty listing as a normal outcome.
var feedSlugs = map[appstore.BaseChart]string{
	appstore.ChartTopFree:     "topfreeapplications",
	appstore.ChartTopPaid:     "toppaidapplications",
	appstore.ChartTopGrossing: "topgrossingapplications",
	appstore.ChartNew:         "newapplications",
}

// reviewFeedMaxPage is the hard upper bound of the customer-reviews
// feed pagination.
const reviewFeedMaxPage = 10

// Connector is the primary (lookup/RSS) tier for the App Store.
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
	return appstore.MarketplaceAppleStore
}

type lookupResponse struct {
	ResultCount int                           `json:"resultCount"`
	Results     []normalize.AppleLookupResult `json:"results"`
}

type feedResponse struct {
	Feed struct {
		Entry []feedEntry `json:"entry"`
	} `json:"feed"`
}

type feedEntry struct {
	ID struct {
		Attributes struct {
			ID string `json:"im:id"`
		} `json:"attributes"`
	} `json:"id"`
}

// AppDetails fetches one app via the lookup API. A zero result count is
// the definitive-absence signal.
func (c *Connector) AppDetails(ctx context.Context, appID, country string) (appstore.AppPayload, error) {
	u := fmt.Sprintf("%s/lookup?id=%s&country=%s&entity=software",
		c.base, url.QueryEscape(appID), url.QueryEscape(country))
	var resp lookupResponse
	if err := c.client.GetJSON(ctx, c.Marketplace(), u, &resp); err != nil {
		return appstore.AppPayload{}, err
	}
	if resp.ResultCount == 0 || len(resp.Results) == 0 {
		return appstore.AppPayload{}, appstore.ErrNotFound
	}
	payload := normalize.FromAppleLookup(resp.Results[0])
	if payload.AppID == "" {
		payload.AppID = appID
	}
	return payload, nil
}

// TopCharts fetches a ranked RSS chart feed.
func (c *Connector) TopCharts(ctx context.Context, country string, chart appstore.BaseChart, limit int) ([]appstore.RankedApp, error) {
	return c.fetchFeed(ctx, country, chart, "", limit)
}

// CategoryList fetches a genre-scoped RSS chart feed.
func (c *Connector) CategoryList(ctx context.Context, country string, chart appstore.BaseChart, category string, limit int) ([]appstore.RankedApp, error) {
	genre := genreID(category)
	if genre == "" {
		return nil, nil
	}
	return c.fetchFeed(ctx, country, chart, genre, limit)
}

// Reviews pages through the customer-reviews feed. The cursor is the
// page number; the feed caps out at page ten.
func (c *Connector) Reviews(ctx context.Context, appID, country, cursor string) (appstore.ReviewPage, error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 {
			return appstore.ReviewPage{}, fmt.Errorf("malformed review cursor %q", cursor)
		}
		page = n
	}
	u := fmt.Sprintf("%s/%s/rss/customerreviews/page=%d/id=%s/sortby=mostrecent/json",
		c.base, url.PathEscape(country), page, url.QueryEscape(appID))

	var resp reviewFeedResponse
	if err := c.client.GetJSON(ctx, c.Marketplace(), u, &resp); err != nil {
		return appstore.ReviewPage{}, err
	}

	out := appstore.ReviewPage{}
	for _, entry := range resp.Feed.Entry {
		// The first entry of page one is the app itself, not a review.
		if entry.Rating.Label == "" {
			continue
		}
		out.Reviews = append(out.Reviews, normalize.FromAppleReview(normalize.AppleReview{
			ID:        entry.ID.Label,
			Author:    entry.Author.Name.Label,
			Rating:    entry.Rating.Label,
			Title:     entry.Title.Label,
			Content:   entry.Content.Label,
			Version:   entry.Version.Label,
			VoteCount: entry.VoteCount.Label,
			Updated:   entry.Updated.Label,
		}, appID, country))
	}
	if len(out.Reviews) > 0 && page < reviewFeedMaxPage {
		out.NextCursor = strconv.Itoa(page + 1)
	}
	return out, nil
}

// SimilarApps has no public JSON surface; the listing is empty.
func (c *Connector) SimilarApps(_ context.Context, _, _ string) ([]appstore.RankedApp, error) {
	return nil, nil
}

// DeveloperApps fetches the artist's other software via lookup.
func (c *Connector) DeveloperApps(ctx context.Context, developerID, country string) ([]appstore.RankedApp, error) {
	u := fmt.Sprintf("%s/lookup?id=%s&country=%s&entity=software&limit=200",
		c.base, url.QueryEscape(developerID), url.QueryEscape(country))
	var resp lookupResponse
	if err := c.client.GetJSON(ctx, c.Marketplace(), u, &resp); err != nil {
		return nil, err
	}
	var out []appstore.RankedApp
	for _, r := range resp.Results {
		if r.TrackID <= 0 {
			// The artist record itself has no track ID.
			continue
		}
		out = append(out, appstore.RankedApp{
			AppID: strconv.FormatInt(r.TrackID, 10),
			Rank:  len(out) + 1,
		})
	}
	return out, nil
}

func (c *Connector) fetchFeed(ctx context.Context, country string, chart appstore.BaseChart, genre string, limit int) ([]appstore.RankedApp, error) {
	slug, ok := feedSlugs[chart]
	if !ok {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 200 // feed ceiling
	}
	u := fmt.Sprintf("%s/%s/rss/%s/limit=%d", c.base, url.PathEscape(country), slug, limit)
	if genre != "" {
		u += "/genre=" + genre
	}
	u += "/json"

	var resp feedResponse
	if err := c.client.GetJSON(ctx, c.Marketplace(), u, &resp); err != nil {
		return nil, err
	}
	var out []appstore.RankedApp
	for _, entry := range resp.Feed.Entry {
		id := strings.TrimSpace(entry.ID.Attributes.ID)
		if id == "" {
			continue
		}
		out = append(out, appstore.RankedApp{AppID: id, Rank: len(out) + 1})
	}
	return out, nil
}

type label struct {
	Label string `json:"label"`
}

type reviewFeedResponse struct {
	Feed struct {
		Entry []reviewEntry `json:"entry"`
	} `json:"feed"`
}

type reviewEntry struct {
	ID     label `json:"id"`
	Author struct {
		Name label `json:"name"`
	} `json:"author"`
	Rating    label `json:"im:rating"`
	Title     label `json:"title"`
	Content   label `json:"content"`
	Version   label `json:"im:version"`
	VoteCount label `json:"im:voteCount"`
	Updated   label `json:"updated"`
}

// genreIDs maps the category labels this pipeline tracks onto iTunes
// genre identifiers.
var genreIDs = map[string]string{
	"BOOKS":         "6018",
	"BUSINESS":      "6000",
	"EDUCATION":     "6017",
	"ENTERTAINMENT": "6016",
	"FINANCE":       "6015",
	"GAMES":         "6014",
	"HEALTH":        "6013",
	"LIFESTYLE":     "6012",
	"MUSIC":         "6011",
	"NAVIGATION":    "6010",
	"NEWS":          "6009",
	"PHOTO & VIDEO": "6008",
	"PRODUCTIVITY":  "6007",
	"SHOPPING":      "6024",
	"SOCIAL":        "6005",
	"SPORTS":        "6004",
	"TRAVEL":        "6003",
	"UTILITIES":     "6002",
	"WEATHER":       "6001",
}

func genreID(category string) string {
	return genreIDs[strings.ToUpper(strings.TrimSpace(category))]
}
