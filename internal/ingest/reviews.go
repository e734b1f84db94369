package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/fallback"
	"github.com/appradar/appradar/internal/metrics"
)

// ReviewSource is the fetch surface the ingestor pages through,
// satisfied by the fallback executor.
type ReviewSource interface {
	Reviews(ctx context.Context, appID, country, cursor string) fallback.ReviewsOutcome
}

// ReviewIngestor pages through an app's review listing and persists
// the rows. Store-level dedup by review ID makes redelivered jobs
// harmless; reviews without a native ID get a content-derived one so
// the same text never lands twice.
type ReviewIngestor struct {
	store  appstore.Store
	hasher appstore.Hasher
	log    *zap.Logger
}

// NewReviewIngestor builds a ReviewIngestor.
func NewReviewIngestor(store appstore.Store, hasher appstore.Hasher, log *zap.Logger) *ReviewIngestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReviewIngestor{store: store, hasher: hasher, log: log}
}

// Ingest fetches up to maxPages pages and reports how many new review
// rows were written. Pagination ends early when the listing runs out.
func (ri *ReviewIngestor) Ingest(ctx context.Context, src ReviewSource, m appstore.Marketplace, appID, country string, maxPages int) (int, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	total := 0
	cursor := ""
	for page := 0; page < maxPages; page++ {
		out := src.Reviews(ctx, appID, country, cursor)

		batch := make([]appstore.Review, 0, len(out.Page.Reviews))
		for _, r := range out.Page.Reviews {
			if r.ReviewID == "" {
				id, err := ri.syntheticID(r)
				if err != nil {
					return total, err
				}
				r.ReviewID = id
			}
			batch = append(batch, r)
		}

		if len(batch) > 0 {
			n, err := ri.store.InsertReviews(ctx, batch)
			if err != nil {
				return total, fmt.Errorf("insert reviews: %w", err)
			}
			total += n
		}

		next := out.Page.NextCursor
		if next == "" || next == cursor {
			break
		}
		cursor = next
	}

	metrics.ObserveReviewsIngested(string(m), total)
	ri.log.Debug("review ingestion finished",
		zap.String("marketplace", string(m)),
		zap.String("app_id", appID),
		zap.String("country", country),
		zap.Int("new_rows", total))
	return total, nil
}

// syntheticID derives a stable identifier from the review content for
// stores that do not expose one.
func (ri *ReviewIngestor) syntheticID(r appstore.Review) (string, error) {
	parts := strings.Join([]string{
		r.AppID,
		r.Text,
		r.CreatedAt.UTC().Format(time.RFC3339),
		strconv.Itoa(r.Rating),
	}, "|")
	digest, err := ri.hasher.Hash([]byte(parts))
	if err != nil {
		return "", fmt.Errorf("derive review id: %w", err)
	}
	return "synth-" + digest[:24], nil
}
