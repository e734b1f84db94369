// Package postgres provides the Postgres-backed pipeline store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appradar/appradar/internal/appstore"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists pipeline data in Postgres. All writes are idempotent
// upserts or conflict-ignoring inserts keyed by natural keys, so
// at-least-once job delivery never duplicates rows.
type Store struct {
	pool pgxPool
}

// New creates a Store with its own connection pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS apps (
	marketplace   TEXT NOT NULL,
	app_id        TEXT NOT NULL,
	payload       JSONB NOT NULL,
	quality       TEXT NOT NULL,
	rating_count  BIGINT,
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (marketplace, app_id)
)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
	id          BIGSERIAL PRIMARY KEY,
	marketplace TEXT NOT NULL,
	app_id      TEXT NOT NULL,
	digest      TEXT NOT NULL,
	payload     JSONB NOT NULL,
	tier        TEXT NOT NULL,
	country     TEXT NOT NULL,
	rank        INT NOT NULL,
	chart_token TEXT NOT NULL,
	source      TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS snapshots_app_idx
	ON snapshots (marketplace, app_id, captured_at DESC)`,
	`CREATE TABLE IF NOT EXISTS daily_stats (
	marketplace  TEXT NOT NULL,
	app_id       TEXT NOT NULL,
	day          DATE NOT NULL,
	country      TEXT NOT NULL,
	score        DOUBLE PRECISION,
	rating_count BIGINT,
	review_count BIGINT,
	installs_min BIGINT,
	installs_max BIGINT,
	PRIMARY KEY (marketplace, app_id, day, country)
)`,
	`CREATE TABLE IF NOT EXISTS rankings (
	marketplace TEXT NOT NULL,
	app_id      TEXT NOT NULL,
	chart       TEXT NOT NULL,
	category    TEXT NOT NULL,
	country     TEXT NOT NULL,
	date        DATE NOT NULL,
	rank        INT NOT NULL,
	PRIMARY KEY (marketplace, app_id, chart, category, country, date)
)`,
	`CREATE TABLE IF NOT EXISTS reviews (
	marketplace   TEXT NOT NULL,
	app_id        TEXT NOT NULL,
	review_id     TEXT NOT NULL,
	author        TEXT NOT NULL,
	rating        INT NOT NULL,
	title         TEXT,
	body          TEXT NOT NULL,
	country       TEXT NOT NULL,
	app_version   TEXT,
	helpful_count BIGINT,
	created_at    TIMESTAMPTZ NOT NULL,
	reply_text    TEXT,
	reply_at      TIMESTAMPTZ,
	PRIMARY KEY (marketplace, app_id, review_id)
)`,
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// UpsertApp creates or updates the canonical record. The conflict
// branch never touches first_seen_at, and last_seen_at only moves
// forward, and only when refreshSeen is set.
func (s *Store) UpsertApp(ctx context.Context, app appstore.CanonicalApp, refreshSeen bool) error {
	payload, err := json.Marshal(app.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	query := `
INSERT INTO apps (marketplace, app_id, payload, quality, rating_count, first_seen_at, last_seen_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (marketplace, app_id) DO UPDATE SET
	payload = EXCLUDED.payload,
	quality = EXCLUDED.quality,
	rating_count = EXCLUDED.rating_count,
	last_seen_at = CASE WHEN $8
		THEN GREATEST(apps.last_seen_at, EXCLUDED.last_seen_at)
		ELSE apps.last_seen_at END`
	_, err = s.pool.Exec(ctx, query,
		string(app.Payload.Marketplace),
		app.Payload.AppID,
		payload,
		string(app.Quality),
		optIntArg(app.Payload.RatingCount),
		app.FirstSeenAt,
		app.LastSeenAt,
		refreshSeen,
	)
	if err != nil {
		return fmt.Errorf("upsert app: %w", err)
	}
	return nil
}

// GetApp returns the canonical record or ErrAppNotFound.
func (s *Store) GetApp(ctx context.Context, m appstore.Marketplace, appID string) (appstore.CanonicalApp, error) {
	query := `
SELECT payload, quality, first_seen_at, last_seen_at
FROM apps
WHERE marketplace = $1 AND app_id = $2`
	row := s.pool.QueryRow(ctx, query, string(m), appID)
	app, err := scanApp(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return appstore.CanonicalApp{}, appstore.ErrAppNotFound
	}
	if err != nil {
		return appstore.CanonicalApp{}, fmt.Errorf("get app: %w", err)
	}
	return app, nil
}

// ListApps pages through canonical records in stable key order.
func (s *Store) ListApps(ctx context.Context, limit, offset int) ([]appstore.CanonicalApp, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `
SELECT payload, quality, first_seen_at, last_seen_at
FROM apps
ORDER BY marketplace, app_id
LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	return collectApps(rows)
}

// LatestSnapshotDigest returns the newest snapshot digest for the pair,
// or "" when none exists.
func (s *Store) LatestSnapshotDigest(ctx context.Context, m appstore.Marketplace, appID string) (string, error) {
	query := `
SELECT digest
FROM snapshots
WHERE marketplace = $1 AND app_id = $2
ORDER BY captured_at DESC, id DESC
LIMIT 1`
	var digest string
	err := s.pool.QueryRow(ctx, query, string(m), appID).Scan(&digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest snapshot digest: %w", err)
	}
	return digest, nil
}

// AppendSnapshot stores an immutable observation.
func (s *Store) AppendSnapshot(ctx context.Context, snap appstore.Snapshot) error {
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	query := `
INSERT INTO snapshots (marketplace, app_id, digest, payload, tier, country, rank, chart_token, source, captured_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = s.pool.Exec(ctx, query,
		string(snap.Marketplace),
		snap.AppID,
		snap.Digest,
		payload,
		string(snap.Tier),
		snap.Country,
		snap.Rank,
		snap.ChartToken,
		snap.Source,
		snap.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// UpsertDailyStat overwrites the stat row for its natural key, so
// re-ingestion within the same day keeps the freshest values.
func (s *Store) UpsertDailyStat(ctx context.Context, stat appstore.DailyStat) error {
	query := `
INSERT INTO daily_stats (marketplace, app_id, day, country, score, rating_count, review_count, installs_min, installs_max)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (marketplace, app_id, day, country) DO UPDATE SET
	score = EXCLUDED.score,
	rating_count = EXCLUDED.rating_count,
	review_count = EXCLUDED.review_count,
	installs_min = EXCLUDED.installs_min,
	installs_max = EXCLUDED.installs_max`
	_, err := s.pool.Exec(ctx, query,
		string(stat.Marketplace),
		stat.AppID,
		stat.Day.UTC().Truncate(24*time.Hour),
		stat.Country,
		optFloatArg(stat.Score),
		optIntArg(stat.RatingCount),
		optIntArg(stat.ReviewCount),
		optIntArg(stat.InstallsMin),
		optIntArg(stat.InstallsMax),
	)
	if err != nil {
		return fmt.Errorf("upsert daily stat: %w", err)
	}
	return nil
}

// UpsertRanking overwrites the ranking row for its natural key.
func (s *Store) UpsertRanking(ctx context.Context, entry appstore.RankingEntry) error {
	query := `
INSERT INTO rankings (marketplace, app_id, chart, category, country, date, rank)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (marketplace, app_id, chart, category, country, date) DO UPDATE SET
	rank = EXCLUDED.rank`
	_, err := s.pool.Exec(ctx, query,
		string(entry.Marketplace),
		entry.AppID,
		string(entry.Chart),
		entry.Category,
		entry.Country,
		entry.Date.UTC().Truncate(24*time.Hour),
		entry.Rank,
	)
	if err != nil {
		return fmt.Errorf("upsert ranking: %w", err)
	}
	return nil
}

// InsertReviews writes only reviews whose ReviewID is new for the app
// and reports how many rows landed.
func (s *Store) InsertReviews(ctx context.Context, reviews []appstore.Review) (int, error) {
	query := `
INSERT INTO reviews (marketplace, app_id, review_id, author, rating, title, body, country, app_version, helpful_count, created_at, reply_text, reply_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (marketplace, app_id, review_id) DO NOTHING`
	inserted := 0
	for _, r := range reviews {
		tag, err := s.pool.Exec(ctx, query,
			string(r.Marketplace),
			r.AppID,
			r.ReviewID,
			r.Author,
			r.Rating,
			optStringArg(r.Title),
			r.Text,
			r.Country,
			optStringArg(r.AppVersion),
			optIntArg(r.HelpfulCount),
			r.CreatedAt,
			optStringArg(r.ReplyText),
			optTimeArg(r.ReplyAt),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert review %s: %w", r.ReviewID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListReviews returns reviews for the app, newest first.
func (s *Store) ListReviews(ctx context.Context, m appstore.Marketplace, appID string, limit int) ([]appstore.Review, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT review_id, author, rating, title, body, country, app_version, helpful_count, created_at, reply_text, reply_at
FROM reviews
WHERE marketplace = $1 AND app_id = $2
ORDER BY created_at DESC, review_id
LIMIT $3`
	rows, err := s.pool.Query(ctx, query, string(m), appID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []appstore.Review
	for rows.Next() {
		r := appstore.Review{Marketplace: m, AppID: appID}
		var (
			title, appVersion, replyText *string
			helpfulCount                 *int64
			replyAt                      *time.Time
		)
		if err := rows.Scan(&r.ReviewID, &r.Author, &r.Rating, &title, &r.Text, &r.Country,
			&appVersion, &helpfulCount, &r.CreatedAt, &replyText, &replyAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Title = optStringFrom(title)
		r.AppVersion = optStringFrom(appVersion)
		r.HelpfulCount = optIntFrom(helpfulCount)
		r.ReplyText = optStringFrom(replyText)
		r.ReplyAt = optTimeFrom(replyAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return out, nil
}

// DailyStats returns stat rows for the app within the trailing window,
// oldest first. country "" matches every country.
func (s *Store) DailyStats(ctx context.Context, m appstore.Marketplace, appID, country string, days int) ([]appstore.DailyStat, error) {
	if days <= 0 {
		days = 36500
	}
	query := `
SELECT day, country, score, rating_count, review_count, installs_min, installs_max
FROM daily_stats
WHERE marketplace = $1 AND app_id = $2
	AND ($3 = '' OR country = $3)
	AND day >= CURRENT_DATE - $4::int
ORDER BY day, country`
	rows, err := s.pool.Query(ctx, query, string(m), appID, country, days)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	defer rows.Close()

	var out []appstore.DailyStat
	for rows.Next() {
		stat := appstore.DailyStat{Marketplace: m, AppID: appID}
		var (
			score       *float64
			ratingCount *int64
			reviewCount *int64
			installsMin *int64
			installsMax *int64
		)
		if err := rows.Scan(&stat.Day, &stat.Country, &score, &ratingCount, &reviewCount, &installsMin, &installsMax); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stat.Score = optFloatFrom(score)
		stat.RatingCount = optIntFrom(ratingCount)
		stat.ReviewCount = optIntFrom(reviewCount)
		stat.InstallsMin = optIntFrom(installsMin)
		stat.InstallsMax = optIntFrom(installsMax)
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return out, nil
}

// Rankings returns ranking rows for the app within the trailing window,
// oldest first.
func (s *Store) Rankings(ctx context.Context, m appstore.Marketplace, appID string, days int) ([]appstore.RankingEntry, error) {
	if days <= 0 {
		days = 36500
	}
	query := `
SELECT chart, category, country, date, rank
FROM rankings
WHERE marketplace = $1 AND app_id = $2
	AND date >= CURRENT_DATE - $3::int
ORDER BY date, chart, category`
	rows, err := s.pool.Query(ctx, query, string(m), appID, days)
	if err != nil {
		return nil, fmt.Errorf("rankings: %w", err)
	}
	defer rows.Close()

	var out []appstore.RankingEntry
	for rows.Next() {
		entry := appstore.RankingEntry{Marketplace: m, AppID: appID}
		var chart string
		if err := rows.Scan(&chart, &entry.Category, &entry.Country, &entry.Date, &entry.Rank); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		entry.Chart = appstore.BaseChart(chart)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rankings: %w", err)
	}
	return out, nil
}

// TopRatedApps lists apps by descending rating volume.
func (s *Store) TopRatedApps(ctx context.Context, limit int) ([]appstore.CanonicalApp, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT payload, quality, first_seen_at, last_seen_at
FROM apps
ORDER BY rating_count DESC NULLS LAST, marketplace, app_id
LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top rated apps: %w", err)
	}
	return collectApps(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner) (appstore.CanonicalApp, error) {
	var (
		payload []byte
		quality string
		app     appstore.CanonicalApp
	)
	if err := row.Scan(&payload, &quality, &app.FirstSeenAt, &app.LastSeenAt); err != nil {
		return appstore.CanonicalApp{}, err
	}
	if err := json.Unmarshal(payload, &app.Payload); err != nil {
		return appstore.CanonicalApp{}, fmt.Errorf("decode payload: %w", err)
	}
	app.Quality = appstore.QualityTag(quality)
	return app, nil
}

func collectApps(rows pgx.Rows) ([]appstore.CanonicalApp, error) {
	defer rows.Close()

	var out []appstore.CanonicalApp
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect apps: %w", err)
	}
	return out, nil
}

func optStringArg(v appstore.OptString) any {
	if !v.Valid {
		return nil
	}
	return v.Value
}

func optIntArg(v appstore.OptInt) any {
	if !v.Valid {
		return nil
	}
	return v.Value
}

func optFloatArg(v appstore.OptFloat) any {
	if !v.Valid {
		return nil
	}
	return v.Value
}

func optTimeArg(v appstore.OptTime) any {
	if !v.Valid {
		return nil
	}
	return v.Value
}

func optStringFrom(v *string) appstore.OptString {
	if v == nil {
		return appstore.OptString{}
	}
	return appstore.SomeString(*v)
}

func optIntFrom(v *int64) appstore.OptInt {
	if v == nil {
		return appstore.OptInt{}
	}
	return appstore.SomeInt(*v)
}

func optFloatFrom(v *float64) appstore.OptFloat {
	if v == nil {
		return appstore.OptFloat{}
	}
	return appstore.SomeFloat(*v)
}

func optTimeFrom(v *time.Time) appstore.OptTime {
	if v == nil {
		return appstore.OptTime{}
	}
	return appstore.SomeTime(*v)
}
