package googleplay

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/connector"
	"github.com/appradar/appradar/internal/normalize"
)

// packageNameRe matches Android package identifiers, the only format
// the web store detail pages resolve.
var packageNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)+$`)

// HTMLConnector is the backup tier: it scrapes the public web store.
// Coverage is narrower than the primary tier; review listings are not
// server-rendered and always fail over to the next tier.
type HTMLConnector struct {
	base   string
	client *connector.Client
}

// NewHTML builds the backup connector.
func NewHTML(baseURL string, client *connector.Client) *HTMLConnector {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTMLConnector{
		base:   strings.TrimRight(baseURL, "/"),
		client: client,
	}
}

// Marketplace identifies this connector's store.
func (c *HTMLConnector) Marketplace() appstore.Marketplace {
	return appstore.MarketplaceGooglePlay
}

// SupportsIdentifier reports whether the web store can resolve the
// identifier at all.
func (c *HTMLConnector) SupportsIdentifier(appID string) bool {
	return packageNameRe.MatchString(appID)
}

// AppDetails scrapes the public detail page.
func (c *HTMLConnector) AppDetails(ctx context.Context, appID, country string) (appstore.AppPayload, error) {
	if !c.SupportsIdentifier(appID) {
		return appstore.AppPayload{}, fmt.Errorf("identifier %q is not a package name: %w", appID, appstore.ErrNotFound)
	}
	u := fmt.Sprintf("%s/store/apps/details?id=%s&gl=%s&hl=en",
		c.base, url.QueryEscape(appID), url.QueryEscape(country))
	doc, err := c.client.GetHTML(ctx, c.Marketplace(), u)
	if err != nil {
		return appstore.AppPayload{}, err
	}

	raw := normalize.GooglePlayApp{
		AppID:         appID,
		Title:         text(doc, `h1[itemprop="name"]`),
		Description:   text(doc, `div[data-g-id="description"]`),
		DeveloperName: text(doc, `div.Vbfug > a > span`),
		GenreID:       strings.ToUpper(text(doc, `a[itemprop="genre"]`)),
		Icon:          attr(doc, `img[itemprop="image"]`, "src"),
		ScoreText:     firstToken(text(doc, `div[itemprop="starRating"]`)),
		RatingsText:   strings.TrimSuffix(text(doc, `div.g1rdde`), " reviews"),
		ContentRating: text(doc, `span[itemprop="contentRating"]`),
	}
	doc.Find(`div[data-screenshot-index] img`).Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			raw.Screenshots = append(raw.Screenshots, src)
		}
	})

	if strings.TrimSpace(raw.Title) == "" {
		// Play serves a search page instead of a 404 for dead links.
		return appstore.AppPayload{}, appstore.ErrNotFound
	}
	return normalize.FromGooglePlay(raw), nil
}

// TopCharts scrapes a collection page; anchor order is the rank order.
func (c *HTMLConnector) TopCharts(ctx context.Context, country string, chart appstore.BaseChart, limit int) ([]appstore.RankedApp, error) {
	slug, ok := chartSlugs[chart]
	if !ok {
		return nil, nil
	}
	u := fmt.Sprintf("%s/store/apps/collection/%s?gl=%s&hl=en",
		c.base, slug, url.QueryEscape(country))
	return c.scrapeRanked(ctx, u, limit)
}

// CategoryList scrapes a category collection page.
func (c *HTMLConnector) CategoryList(ctx context.Context, country string, chart appstore.BaseChart, category string, limit int) ([]appstore.RankedApp, error) {
	slug, ok := chartSlugs[chart]
	if !ok {
		return nil, nil
	}
	u := fmt.Sprintf("%s/store/apps/category/%s/collection/%s?gl=%s&hl=en",
		c.base, url.PathEscape(strings.ToUpper(category)), slug, url.QueryEscape(country))
	return c.scrapeRanked(ctx, u, limit)
}

// Reviews are not server-rendered on the web store.
func (c *HTMLConnector) Reviews(_ context.Context, _, _, _ string) (appstore.ReviewPage, error) {
	return appstore.ReviewPage{}, fmt.Errorf("reviews are not available from the web store")
}

// SimilarApps scrapes the similar cluster linked from the detail page.
func (c *HTMLConnector) SimilarApps(ctx context.Context, appID, country string) ([]appstore.RankedApp, error) {
	u := fmt.Sprintf("%s/store/apps/similar?id=%s&gl=%s&hl=en",
		c.base, url.QueryEscape(appID), url.QueryEscape(country))
	return c.scrapeRanked(ctx, u, 0)
}

// DeveloperApps scrapes the developer listing page.
func (c *HTMLConnector) DeveloperApps(ctx context.Context, developerID, country string) ([]appstore.RankedApp, error) {
	u := fmt.Sprintf("%s/store/apps/dev?id=%s&gl=%s&hl=en",
		c.base, url.QueryEscape(developerID), url.QueryEscape(country))
	return c.scrapeRanked(ctx, u, 0)
}

func (c *HTMLConnector) scrapeRanked(ctx context.Context, u string, limit int) ([]appstore.RankedApp, error) {
	doc, err := c.client.GetHTML(ctx, c.Marketplace(), u)
	if err != nil {
		return nil, err
	}
	var out []appstore.RankedApp
	seen := make(map[string]bool)
	doc.Find(`a[href*="/store/apps/details?id="]`).Each(func(_ int, s *goquery.Selection) {
		if limit > 0 && len(out) >= limit {
			return
		}
		href, _ := s.Attr("href")
		id := appIDFromHref(href)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, appstore.RankedApp{AppID: id, Rank: len(out) + 1})
	})
	return out, nil
}

func appIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return v
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
