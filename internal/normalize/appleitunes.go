package normalize

import (
	"strconv"
	"strings"

	"github.com/appradar/appradar/internal/appstore"
)

// AppleLookupResult is the tagged raw variant returned by the iTunes
// lookup API. Field names mirror the wire format.
type AppleLookupResult struct {
	TrackID                   int64    `json:"trackId"`
	TrackName                 string   `json:"trackName"`
	ArtistName                string   `json:"artistName"`
	ArtistID                  int64    `json:"artistId"`
	ArtistViewURL             string   `json:"artistViewUrl"`
	PrimaryGenreName          string   `json:"primaryGenreName"`
	ArtworkURL512             string   `json:"artworkUrl512"`
	ArtworkURL100             string   `json:"artworkUrl100"`
	ScreenshotURLs            []string `json:"screenshotUrls"`
	Description               string   `json:"description"`
	SellerURL                 string   `json:"sellerUrl"`
	AverageUserRating         float64  `json:"averageUserRating"`
	UserRatingCount           int64    `json:"userRatingCount"`
	Price                     float64  `json:"price"`
	FormattedPrice            string   `json:"formattedPrice"`
	Currency                  string   `json:"currency"`
	Version                   string   `json:"version"`
	ContentAdvisoryRating     string   `json:"contentAdvisoryRating"`
	ReleaseDate               string   `json:"releaseDate"`
	CurrentVersionReleaseDate string   `json:"currentVersionReleaseDate"`
}

// FromAppleLookup maps an iTunes lookup result into the unified schema.
func FromAppleLookup(raw AppleLookupResult) appstore.AppPayload {
	appID := ""
	if raw.TrackID > 0 {
		appID = strconv.FormatInt(raw.TrackID, 10)
	}

	icon := raw.ArtworkURL512
	if icon == "" {
		icon = raw.ArtworkURL100
	}

	p := appstore.AppPayload{
		Marketplace: appstore.MarketplaceAppleStore,
		AppID:       appID,
		Title:       RequiredText(raw.TrackName),
		Developer:   RequiredText(raw.ArtistName),
		Category:    strings.ToUpper(RequiredText(raw.PrimaryGenreName)),
		Description: RequiredText(raw.Description),

		IconURL:    OptionalURL(icon),
		WebsiteURL: OptionalURL(raw.SellerURL),

		Version:       appstore.SomeString(strings.TrimSpace(raw.Version)),
		ContentRating: appstore.SomeString(strings.TrimSpace(raw.ContentAdvisoryRating)),
		ReleasedAt:    ParseTime(raw.ReleaseDate),
		UpdatedAt:     ParseTime(raw.CurrentVersionReleaseDate),

		// The lookup API has no ads/IAP signal.
		ContainsAds:    appstore.TriUnknown,
		InAppPurchases: appstore.TriUnknown,
	}

	if raw.ArtistID > 0 {
		p.DeveloperID = appstore.SomeString(strconv.FormatInt(raw.ArtistID, 10))
	}
	if raw.AverageUserRating > 0 && raw.AverageUserRating <= 5 {
		p.Score = appstore.SomeFloat(raw.AverageUserRating)
	}
	if raw.UserRatingCount > 0 {
		p.RatingCount = appstore.SomeInt(raw.UserRatingCount)
	}
	if raw.FormattedPrice != "" {
		p.Price = appstore.SomeFloat(raw.Price)
		p.Currency = appstore.SomeString(strings.TrimSpace(raw.Currency))
		p.Free = appstore.TriFrom(raw.Price == 0)
	}

	for _, shot := range raw.ScreenshotURLs {
		if u := OptionalURL(shot); u.Valid {
			p.Screenshots = append(p.Screenshots, u.Value)
		}
	}
	return p
}

// AppleReview is the raw review variant from the customer-reviews feed.
type AppleReview struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Rating    string `json:"rating"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Version   string `json:"version"`
	VoteCount string `json:"voteCount"`
	Updated   string `json:"updated"`
}

// FromAppleReview maps a raw feed review into the unified shape.
func FromAppleReview(raw AppleReview, appID, country string) appstore.Review {
	rating := 0
	if n, err := strconv.Atoi(strings.TrimSpace(raw.Rating)); err == nil {
		rating = clampRating(n)
	}
	r := appstore.Review{
		Marketplace:  appstore.MarketplaceAppleStore,
		AppID:        appID,
		ReviewID:     strings.TrimSpace(raw.ID),
		Author:       RequiredText(raw.Author),
		Rating:       rating,
		Title:        appstore.SomeString(strings.TrimSpace(raw.Title)),
		Text:         strings.TrimSpace(raw.Content),
		Country:      country,
		AppVersion:   appstore.SomeString(strings.TrimSpace(raw.Version)),
		HelpfulCount: ParseCount(raw.VoteCount),
	}
	if t := ParseTime(raw.Updated); t.Valid {
		r.CreatedAt = t.Value
	}
	return r
}
