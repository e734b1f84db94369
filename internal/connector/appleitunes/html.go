package appleitunes

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/connector"
	"github.com/appradar/appradar/internal/normalize"
)

// DefaultWebBaseURL is the public web storefront.
const DefaultWebBaseURL = "https://apps.apple.com"

// HTMLConnector is the backup tier: it scrapes the apps.apple.com
// storefront. Pages resolve numeric track IDs only, so bundle-style
// identifiers are rejected up front. Chart and review listings are not
// server-rendered and always fail over to the next tier.
type HTMLConnector struct {
	base   string
	client *connector.Client
}

// NewHTML builds the backup connector.
func NewHTML(baseURL string, client *connector.Client) *HTMLConnector {
	if baseURL == "" {
		baseURL = DefaultWebBaseURL
	}
	return &HTMLConnector{
		base:   strings.TrimRight(baseURL, "/"),
		client: client,
	}
}

// Marketplace identifies this connector's store.
func (c *HTMLConnector) Marketplace() appstore.Marketplace {
	return appstore.MarketplaceAppleStore
}

// SupportsIdentifier reports whether the storefront can resolve the
// identifier. Detail URLs embed the numeric track ID.
func (c *HTMLConnector) SupportsIdentifier(appID string) bool {
	if appID == "" {
		return false
	}
	for _, r := range appID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AppDetails scrapes the public app page.
func (c *HTMLConnector) AppDetails(ctx context.Context, appID, country string) (appstore.AppPayload, error) {
	if !c.SupportsIdentifier(appID) {
		return appstore.AppPayload{}, fmt.Errorf("identifier %q is not a track id: %w", appID, appstore.ErrNotFound)
	}
	u := fmt.Sprintf("%s/%s/app/id%s", c.base, url.PathEscape(strings.ToLower(country)), appID)
	doc, err := c.client.GetHTML(ctx, c.Marketplace(), u)
	if err != nil {
		return appstore.AppPayload{}, err
	}

	title := pageText(doc, `h1.product-header__title`)
	if title == "" {
		title = pageText(doc, `h1`)
	}
	if title == "" {
		return appstore.AppPayload{}, appstore.ErrNotFound
	}

	raw := normalize.AppleLookupResult{
		TrackName:             title,
		ArtistName:            pageText(doc, `h2.product-header__identity a`),
		Description:           pageText(doc, `div.section__description div.we-truncate`),
		ArtworkURL512:         pageAttr(doc, `picture.we-artwork source`, "srcset"),
		FormattedPrice:        pageText(doc, `li.app-header__list__item--price`),
		PrimaryGenreName:      pageText(doc, `ul.inline-list--app-extensions a`),
		ContentAdvisoryRating: pageText(doc, `span.badge--product-title`),
		Version:               strings.TrimPrefix(pageText(doc, `p.whats-new__latest__version`), "Version "),
	}
	if score, count, ok := parseRatingBlurb(pageText(doc, `figcaption.we-rating-count`)); ok {
		raw.AverageUserRating = score
		raw.UserRatingCount = count
	}
	if srcset := raw.ArtworkURL512; srcset != "" {
		// srcset lists "url width" pairs; the first URL is enough.
		raw.ArtworkURL512 = strings.Fields(srcset)[0]
	}

	payload := normalize.FromAppleLookup(raw)
	payload.AppID = appID
	return payload, nil
}

// TopCharts is not server-rendered on the storefront.
func (c *HTMLConnector) TopCharts(_ context.Context, _ string, _ appstore.BaseChart, _ int) ([]appstore.RankedApp, error) {
	return nil, fmt.Errorf("charts are not available from the storefront")
}

// CategoryList is not server-rendered on the storefront.
func (c *HTMLConnector) CategoryList(_ context.Context, _ string, _ appstore.BaseChart, _ string, _ int) ([]appstore.RankedApp, error) {
	return nil, fmt.Errorf("category charts are not available from the storefront")
}

// Reviews are not server-rendered on the storefront.
func (c *HTMLConnector) Reviews(_ context.Context, _, _, _ string) (appstore.ReviewPage, error) {
	return appstore.ReviewPage{}, fmt.Errorf("reviews are not available from the storefront")
}

// SimilarApps scrapes the "You Might Also Like" shelf.
func (c *HTMLConnector) SimilarApps(ctx context.Context, appID, country string) ([]appstore.RankedApp, error) {
	if !c.SupportsIdentifier(appID) {
		return nil, fmt.Errorf("identifier %q is not a track id: %w", appID, appstore.ErrNotFound)
	}
	u := fmt.Sprintf("%s/%s/app/id%s", c.base, url.PathEscape(strings.ToLower(country)), appID)
	return c.scrapeAppLinks(ctx, u)
}

// DeveloperApps scrapes the developer page.
func (c *HTMLConnector) DeveloperApps(ctx context.Context, developerID, country string) ([]appstore.RankedApp, error) {
	if !c.SupportsIdentifier(developerID) {
		return nil, fmt.Errorf("identifier %q is not an artist id: %w", developerID, appstore.ErrNotFound)
	}
	u := fmt.Sprintf("%s/%s/developer/id%s", c.base, url.PathEscape(strings.ToLower(country)), developerID)
	return c.scrapeAppLinks(ctx, u)
}

func (c *HTMLConnector) scrapeAppLinks(ctx context.Context, u string) ([]appstore.RankedApp, error) {
	doc, err := c.client.GetHTML(ctx, c.Marketplace(), u)
	if err != nil {
		return nil, err
	}
	var out []appstore.RankedApp
	seen := make(map[string]bool)
	doc.Find(`a[href*="/app/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		id := trackIDFromHref(href)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, appstore.RankedApp{AppID: id, Rank: len(out) + 1})
	})
	return out, nil
}

// trackIDFromHref pulls the numeric ID out of ".../app/<slug>/id12345".
func trackIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	segments := strings.Split(u.Path, "/")
	last := segments[len(segments)-1]
	if !strings.HasPrefix(last, "id") {
		return ""
	}
	id := strings.TrimPrefix(last, "id")
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if id == "" {
		return ""
	}
	return id
}

// parseRatingBlurb reads "4.7 • 12.3K Ratings" style captions.
func parseRatingBlurb(s string) (float64, int64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, false
	}
	score := normalize.ParseScore(fields[0])
	if !score.Valid {
		return 0, 0, false
	}
	var count int64
	for _, f := range fields[1:] {
		if n := normalize.ParseCount(f); n.Valid {
			count = n.Value
			break
		}
	}
	return score.Value, count, true
}

func pageText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func pageAttr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return v
}
