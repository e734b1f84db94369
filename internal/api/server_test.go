package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/id/uuid"
	"github.com/appradar/appradar/internal/metrics"
	queuemem "github.com/appradar/appradar/internal/queue/memory"
	"github.com/appradar/appradar/internal/scheduler"
	storemem "github.com/appradar/appradar/internal/store/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

func newTestServer(t *testing.T) (*Server, *storemem.Store, appstore.Queue[appstore.DiscoveryJob]) {
	t.Helper()

	store := storemem.New()
	discovery := queuemem.NewQueue[appstore.DiscoveryJob](128)
	seeder := scheduler.NewSeeder(scheduler.SeederConfig{
		Discovery:    discovery,
		IDs:          uuid.NewUUIDGenerator(),
		Marketplaces: []appstore.Marketplace{appstore.MarketplaceGooglePlay},
		Countries:    []string{"us"},
		Limit:        50,
		Log:          zap.NewNop(),
	})
	return NewServer(store, seeder, zap.NewNop()), store, discovery
}

func seedApp(t *testing.T, store *storemem.Store, appID string) {
	t.Helper()

	now := time.Now().UTC()
	app := appstore.CanonicalApp{
		Payload: appstore.AppPayload{
			Marketplace: appstore.MarketplaceGooglePlay,
			AppID:       appID,
			Title:       "App " + appID,
			Developer:   "Acme",
			Category:    "FINANCE",
			Description: "desc",
		},
		Quality:     appstore.QualityRaw,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	require.NoError(t, store.UpsertApp(context.Background(), app, true))
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doRequest(t, s, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListAndGetApp(t *testing.T) {
	t.Parallel()

	s, store, _ := newTestServer(t)
	seedApp(t, store, "com.acme.app")

	rec := doRequest(t, s, http.MethodGet, "/v1/apps")
	require.Equal(t, http.StatusOK, rec.Code)
	var listBody struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	require.Equal(t, 1, listBody.Count)

	rec = doRequest(t, s, http.MethodGet, "/v1/apps/google-play/com.acme.app")
	require.Equal(t, http.StatusOK, rec.Code)
	var getBody struct {
		App appstore.CanonicalApp `json:"app"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getBody))
	require.Equal(t, "App com.acme.app", getBody.App.Payload.Title)

	rec = doRequest(t, s, http.MethodGet, "/v1/apps/google-play/com.ghost")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/apps/windows-store/com.acme.app")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsRankingsReviews(t *testing.T) {
	t.Parallel()

	s, store, _ := newTestServer(t)
	seedApp(t, store, "com.acme.app")
	ctx := context.Background()
	day := time.Now().UTC().Truncate(24 * time.Hour)

	require.NoError(t, store.UpsertDailyStat(ctx, appstore.DailyStat{
		Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.acme.app",
		Day: day, Country: "us", Score: appstore.SomeFloat(4.4),
	}))
	require.NoError(t, store.UpsertRanking(ctx, appstore.RankingEntry{
		Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.acme.app",
		Chart: appstore.ChartTopFree, Country: "us", Date: day, Rank: 2,
	}))
	_, err := store.InsertReviews(ctx, []appstore.Review{{
		Marketplace: appstore.MarketplaceGooglePlay, AppID: "com.acme.app",
		ReviewID: "r1", Author: "u", Rating: 5, Text: "nice", Country: "us",
		CreatedAt: time.Now().UTC(),
	}})
	require.NoError(t, err)

	for _, path := range []string{
		"/v1/apps/google-play/com.acme.app/stats?country=us&days=7",
		"/v1/apps/google-play/com.acme.app/rankings?days=7",
		"/v1/apps/google-play/com.acme.app/reviews?limit=10",
	} {
		rec := doRequest(t, s, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, 1, body.Count, path)
	}
}

func TestTriggerSweep(t *testing.T) {
	t.Parallel()

	s, _, discovery := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/sweeps")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		Enqueued int `json:"enqueued"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Enqueued, "one marketplace x one country x three charts")
	require.Equal(t, 3, discovery.Len())
}
