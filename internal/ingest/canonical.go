// Package ingest turns fetched payloads into persisted state: snapshots
// with content-addressed dedup, canonical upserts, daily aggregates,
// rankings and reviews.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/appradar/appradar/internal/appstore"
)

// canonicalForm is the stable serialization the snapshot digest is
// computed over. Field order is fixed, numbers render as strings and
// timestamps as UTC RFC3339, so the digest survives struct evolution
// and float formatting drift.
type canonicalForm struct {
	Marketplace string `json:"marketplace"`
	AppID       string `json:"app_id"`

	Title       string `json:"title"`
	Developer   string `json:"developer"`
	Category    string `json:"category"`
	Description string `json:"description"`

	DeveloperID    string   `json:"developer_id"`
	IconURL        string   `json:"icon_url"`
	HeaderImageURL string   `json:"header_image_url"`
	VideoURL       string   `json:"video_url"`
	WebsiteURL     string   `json:"website_url"`
	PrivacyURL     string   `json:"privacy_url"`
	Screenshots    []string `json:"screenshots"`

	Score       string `json:"score"`
	RatingCount string `json:"rating_count"`
	ReviewCount string `json:"review_count"`
	InstallsMin string `json:"installs_min"`
	InstallsMax string `json:"installs_max"`

	Price          string `json:"price"`
	Currency       string `json:"currency"`
	Free           string `json:"free"`
	ContainsAds    string `json:"contains_ads"`
	InAppPurchases string `json:"in_app_purchases"`

	Version       string `json:"version"`
	ContentRating string `json:"content_rating"`
	ReleasedAt    string `json:"released_at"`
	UpdatedAt     string `json:"updated_at"`
}

// CanonicalBytes renders the payload in its canonical form. Two
// payloads with the same observable content always produce identical
// bytes.
func CanonicalBytes(p appstore.AppPayload) ([]byte, error) {
	form := canonicalForm{
		Marketplace: string(p.Marketplace),
		AppID:       p.AppID,

		Title:       p.Title,
		Developer:   p.Developer,
		Category:    p.Category,
		Description: p.Description,

		DeveloperID:    canonString(p.DeveloperID),
		IconURL:        canonString(p.IconURL),
		HeaderImageURL: canonString(p.HeaderImageURL),
		VideoURL:       canonString(p.VideoURL),
		WebsiteURL:     canonString(p.WebsiteURL),
		PrivacyURL:     canonString(p.PrivacyURL),
		Screenshots:    p.Screenshots,

		Score:       canonFloat(p.Score),
		RatingCount: canonInt(p.RatingCount),
		ReviewCount: canonInt(p.ReviewCount),
		InstallsMin: canonInt(p.InstallsMin),
		InstallsMax: canonInt(p.InstallsMax),

		Price:          canonFloat(p.Price),
		Currency:       canonString(p.Currency),
		Free:           p.Free.String(),
		ContainsAds:    p.ContainsAds.String(),
		InAppPurchases: p.InAppPurchases.String(),

		Version:       canonString(p.Version),
		ContentRating: canonString(p.ContentRating),
		ReleasedAt:    canonTime(p.ReleasedAt),
		UpdatedAt:     canonTime(p.UpdatedAt),
	}
	data, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return data, nil
}

func canonString(v appstore.OptString) string {
	if !v.Valid {
		return ""
	}
	return v.Value
}

func canonInt(v appstore.OptInt) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Value, 10)
}

func canonFloat(v appstore.OptFloat) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Value, 'g', -1, 64)
}

func canonTime(v appstore.OptTime) string {
	if !v.Valid {
		return ""
	}
	return v.Value.UTC().Format(time.RFC3339)
}
