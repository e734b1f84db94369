// Package appstore defines core types shared across subsystems.
package appstore

import (
	"time"
)

// Marketplace identifies one upstream app store.
type Marketplace string

// Supported marketplaces.
const (
	MarketplaceGooglePlay Marketplace = "google-play"
	MarketplaceAppleStore Marketplace = "apple-appstore"
)

// NotAvailable is the sentinel for required descriptive fields that the
// upstream never supplied. The dashboard renders it as-is instead of an
// empty string.
const NotAvailable = "not available"

// Tier records how a payload was obtained.
type Tier string

// Provenance tiers, in escalation order.
const (
	TierRealAPI       Tier = "REAL_API"
	TierHTMLBackup    Tier = "HTML_BACKUP"
	TierDummyFallback Tier = "DUMMY_FALLBACK"
)

// QualityTag classifies payload completeness.
type QualityTag string

// Quality tags derived from the completeness heuristic over the four
// critical fields (icon, rating signal, description, developer).
const (
	QualityRaw     QualityTag = "RAW"
	QualityCleaned QualityTag = "CLEANED"
	QualityFlagged QualityTag = "FLAGGED"
)

// AppPayload is the normalized, store-agnostic shape of one app
// observation. Every connector output passes through the normalizer into
// this struct before anything downstream sees it.
type AppPayload struct {
	Marketplace Marketplace `json:"marketplace"`
	AppID       string      `json:"app_id"`

	// Required descriptive fields: NotAvailable when missing upstream.
	Title       string `json:"title"`
	Developer   string `json:"developer"`
	Category    string `json:"category"`
	Description string `json:"description"`

	// Optional reference fields: absent when missing, never sentinels.
	DeveloperID    OptString `json:"developer_id"`
	IconURL        OptString `json:"icon_url"`
	HeaderImageURL OptString `json:"header_image_url"`
	VideoURL       OptString `json:"video_url"`
	WebsiteURL     OptString `json:"website_url"`
	PrivacyURL     OptString `json:"privacy_url"`
	Screenshots    []string  `json:"screenshots,omitempty"`

	// Statistical fields.
	Score       OptFloat `json:"score"`
	RatingCount OptInt   `json:"rating_count"`
	ReviewCount OptInt   `json:"review_count"`
	InstallsMin OptInt   `json:"installs_min"`
	InstallsMax OptInt   `json:"installs_max"`

	// Monetization fields.
	Price          OptFloat  `json:"price"`
	Currency       OptString `json:"currency"`
	Free           TriBool   `json:"free"`
	ContainsAds    TriBool   `json:"contains_ads"`
	InAppPurchases TriBool   `json:"in_app_purchases"`

	Version       OptString `json:"version"`
	ContentRating OptString `json:"content_rating"`
	ReleasedAt    OptTime   `json:"released_at"`
	UpdatedAt     OptTime   `json:"updated_at"`
}

// CanonicalApp is the unified current-state record for one
// (marketplace, app identifier) pair.
type CanonicalApp struct {
	Payload     AppPayload `json:"payload"`
	Quality     QualityTag `json:"quality"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
}

// Snapshot is an immutable capture of one normalized payload observation,
// tagged with its discovery context and provenance tier.
type Snapshot struct {
	Marketplace Marketplace `json:"marketplace"`
	AppID       string      `json:"app_id"`
	Digest      string      `json:"digest"`
	Payload     AppPayload  `json:"payload"`
	Tier        Tier        `json:"tier"`
	Country     string      `json:"country"`
	Rank        int         `json:"rank"`
	ChartToken  string      `json:"chart_token"`
	Source      string      `json:"source"`
	CapturedAt  time.Time   `json:"captured_at"`
}

// DailyStat is one statistics row per (app, calendar day, country).
// Re-ingestion within the same day overwrites the row.
type DailyStat struct {
	Marketplace Marketplace `json:"marketplace"`
	AppID       string      `json:"app_id"`
	Day         time.Time   `json:"day"`
	Country     string      `json:"country"`
	Score       OptFloat    `json:"score"`
	RatingCount OptInt      `json:"rating_count"`
	ReviewCount OptInt      `json:"review_count"`
	InstallsMin OptInt      `json:"installs_min"`
	InstallsMax OptInt      `json:"installs_max"`
}

// RankingEntry is one chart position per
// (app, chart, category, country, date).
type RankingEntry struct {
	Marketplace Marketplace `json:"marketplace"`
	AppID       string      `json:"app_id"`
	Chart       BaseChart   `json:"chart"`
	Category    string      `json:"category"`
	Country     string      `json:"country"`
	Date        time.Time   `json:"date"`
	Rank        int         `json:"rank"`
}

// Review is one user review, deduplicated by ReviewID.
type Review struct {
	Marketplace  Marketplace `json:"marketplace"`
	AppID        string      `json:"app_id"`
	ReviewID     string      `json:"review_id"`
	Author       string      `json:"author"`
	Rating       int         `json:"rating"`
	Title        OptString   `json:"title"`
	Text         string      `json:"text"`
	Country      string      `json:"country"`
	AppVersion   OptString   `json:"app_version"`
	HelpfulCount OptInt      `json:"helpful_count"`
	CreatedAt    time.Time   `json:"created_at"`
	ReplyText    OptString   `json:"reply_text"`
	ReplyAt      OptTime     `json:"reply_at"`
}

// RankedApp is one (identifier, rank) pair returned by discovery.
type RankedApp struct {
	AppID string `json:"app_id"`
	Rank  int    `json:"rank"`
}

// ReviewPage is one page of a cursor-based review listing. An empty
// NextCursor marks the natural end of the listing.
type ReviewPage struct {
	Reviews    []Review `json:"reviews"`
	NextCursor string   `json:"next_cursor"`
}
