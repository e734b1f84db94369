package normalize

import (
	"strings"

	"github.com/appradar/appradar/internal/appstore"
)

// GooglePlayApp is the tagged raw variant scraped from Play's embedded
// structured data or the visible DOM. Fields are loosely typed on
// purpose: both sources emit display strings, not numbers.
type GooglePlayApp struct {
	AppID            string   `json:"appId"`
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Description      string   `json:"description"`
	DeveloperName    string   `json:"developer"`
	DeveloperID      string   `json:"developerId"`
	GenreID          string   `json:"genreId"`
	Icon             string   `json:"icon"`
	HeaderImage      string   `json:"headerImage"`
	Screenshots      []string `json:"screenshots"`
	Video            string   `json:"video"`
	DeveloperWebsite string   `json:"developerWebsite"`
	PrivacyPolicy    string   `json:"privacyPolicy"`
	ScoreText        string   `json:"scoreText"`
	RatingsText      string   `json:"ratings"`
	ReviewsText      string   `json:"reviews"`
	InstallsText     string   `json:"installs"`
	PriceText        string   `json:"priceText"`
	Currency         string   `json:"currency"`
	Free             *bool    `json:"free"`
	AdSupported      *bool    `json:"adSupported"`
	OffersIAP        *bool    `json:"offersIAP"`
	Version          string   `json:"version"`
	ContentRating    string   `json:"contentRating"`
	Released         string   `json:"released"`
	UpdatedMillis    int64    `json:"updatedMillis"`
}

// FromGooglePlay maps the raw Play variant into the unified schema.
// Malformed values become sentinels or absent fields, never errors.
func FromGooglePlay(raw GooglePlayApp) appstore.AppPayload {
	description := raw.Description
	if strings.TrimSpace(description) == "" {
		description = raw.Summary
	}

	installsMin, installsMax := ParseInstalls(raw.InstallsText)

	p := appstore.AppPayload{
		Marketplace: appstore.MarketplaceGooglePlay,
		AppID:       strings.TrimSpace(raw.AppID),
		Title:       RequiredText(raw.Title),
		Developer:   RequiredText(raw.DeveloperName),
		Category:    strings.ToUpper(RequiredText(raw.GenreID)),
		Description: RequiredText(description),

		DeveloperID:    appstore.SomeString(strings.TrimSpace(raw.DeveloperID)),
		IconURL:        OptionalURL(raw.Icon),
		HeaderImageURL: OptionalURL(raw.HeaderImage),
		VideoURL:       OptionalURL(raw.Video),
		WebsiteURL:     OptionalURL(raw.DeveloperWebsite),
		PrivacyURL:     OptionalURL(raw.PrivacyPolicy),

		Score:       ParseScore(raw.ScoreText),
		RatingCount: ParseCount(raw.RatingsText),
		ReviewCount: ParseCount(raw.ReviewsText),
		InstallsMin: installsMin,
		InstallsMax: installsMax,

		Price:          ParsePrice(raw.PriceText),
		Currency:       appstore.SomeString(strings.TrimSpace(raw.Currency)),
		Free:           TriFromPtr(raw.Free),
		ContainsAds:    TriFromPtr(raw.AdSupported),
		InAppPurchases: TriFromPtr(raw.OffersIAP),

		Version:       appstore.SomeString(strings.TrimSpace(raw.Version)),
		ContentRating: appstore.SomeString(strings.TrimSpace(raw.ContentRating)),
		ReleasedAt:    ParseTime(raw.Released),
		UpdatedAt:     ParseUnixMillis(raw.UpdatedMillis),
	}

	for _, shot := range raw.Screenshots {
		if u := OptionalURL(shot); u.Valid {
			p.Screenshots = append(p.Screenshots, u.Value)
		}
	}
	return p
}

// GooglePlayReview is the raw review variant from Play.
type GooglePlayReview struct {
	ReviewID     string `json:"reviewId"`
	UserName     string `json:"userName"`
	Score        int    `json:"score"`
	Title        string `json:"title"`
	Text         string `json:"text"`
	Version      string `json:"version"`
	ThumbsUp     int64  `json:"thumbsUp"`
	Date         string `json:"date"`
	ReplyText    string `json:"replyText"`
	ReplyDate    string `json:"replyDate"`
}

// FromGooglePlayReview maps a raw Play review into the unified shape.
func FromGooglePlayReview(raw GooglePlayReview, appID, country string) appstore.Review {
	created := ParseTime(raw.Date)
	r := appstore.Review{
		Marketplace:  appstore.MarketplaceGooglePlay,
		AppID:        appID,
		ReviewID:     strings.TrimSpace(raw.ReviewID),
		Author:       RequiredText(raw.UserName),
		Rating:       clampRating(raw.Score),
		Title:        appstore.SomeString(strings.TrimSpace(raw.Title)),
		Text:         strings.TrimSpace(raw.Text),
		Country:      country,
		AppVersion:   appstore.SomeString(strings.TrimSpace(raw.Version)),
		ReplyText:    appstore.SomeString(strings.TrimSpace(raw.ReplyText)),
		ReplyAt:      ParseTime(raw.ReplyDate),
	}
	if raw.ThumbsUp >= 0 {
		r.HelpfulCount = appstore.SomeInt(raw.ThumbsUp)
	}
	if created.Valid {
		r.CreatedAt = created.Value
	}
	return r
}

func clampRating(score int) int {
	if score < 0 {
		return 0
	}
	if score > 5 {
		return 5
	}
	return score
}
