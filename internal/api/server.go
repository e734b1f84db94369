// Package api exposes the HTTP interface for the ingestion service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/metrics"
	"github.com/appradar/appradar/internal/scheduler"
)

// Server wires HTTP handlers to the store and the sweep seeder.
type Server struct {
	router chi.Router
	store  appstore.Store
	seeder *scheduler.Seeder
	log    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store appstore.Store, seeder *scheduler.Seeder, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{store: store, seeder: seeder, log: log}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/apps", s.listApps)
		r.Route("/apps/{marketplace}/{app_id}", func(r chi.Router) {
			r.Get("/", s.getApp)
			r.Get("/stats", s.getStats)
			r.Get("/rankings", s.getRankings)
			r.Get("/reviews", s.getReviews)
		})
		r.Post("/sweeps", s.triggerSweep)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; a cheap read proves it.
	if _, err := s.store.ListApps(r.Context(), 1, 0); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listApps(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	apps, err := s.store.ListApps(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list apps")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"apps": apps, "count": len(apps)})
}

func (s *Server) getApp(w http.ResponseWriter, r *http.Request) {
	m, appID, ok := s.appParams(w, r)
	if !ok {
		return
	}
	app, err := s.store.GetApp(r.Context(), m, appID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "app not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"app": app})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	m, appID, ok := s.appParams(w, r)
	if !ok {
		return
	}
	country := r.URL.Query().Get("country")
	days := queryInt(r, "days", 30)

	stats, err := s.store.DailyStats(r.Context(), m, appID, country, days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "count": len(stats)})
}

func (s *Server) getRankings(w http.ResponseWriter, r *http.Request) {
	m, appID, ok := s.appParams(w, r)
	if !ok {
		return
	}
	days := queryInt(r, "days", 30)

	rankings, err := s.store.Rankings(r.Context(), m, appID, days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load rankings")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rankings": rankings, "count": len(rankings)})
}

func (s *Server) getReviews(w http.ResponseWriter, r *http.Request) {
	m, appID, ok := s.appParams(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 50)

	reviews, err := s.store.ListReviews(r.Context(), m, appID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load reviews")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews, "count": len(reviews)})
}

func (s *Server) triggerSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := s.seeder.EnqueueSweep(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to seed sweep")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"enqueued": n})
}

func (s *Server) appParams(w http.ResponseWriter, r *http.Request) (appstore.Marketplace, string, bool) {
	m := appstore.Marketplace(chi.URLParam(r, "marketplace"))
	switch m {
	case appstore.MarketplaceGooglePlay, appstore.MarketplaceAppleStore:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown marketplace")
		return "", "", false
	}
	appID := chi.URLParam(r, "app_id")
	if appID == "" {
		s.writeError(w, http.StatusBadRequest, "missing app id")
		return "", "", false
	}
	return m, appID, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
