// Package http serves the read API the map frontend polls, plus the manual
// refresh trigger and operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
	"github.com/vsharha/WorldOnFire-backend/internal/refresh"
	"github.com/vsharha/WorldOnFire-backend/internal/store"
)

// Refresher triggers refresh cycles and reports readiness; satisfied by
// *refresh.Driver.
type Refresher interface {
	RunOnce(ctx context.Context) refresh.CycleSummary
	CheckReadiness(ctx context.Context) error
}

// Server exposes the JSON API over a chi router.
type Server struct {
	httpServer *http.Server
	registry   *domain.Registry
	store      store.Store
	refresher  Refresher
	logger     *slog.Logger
}

// NewServer wires the API routes.
func NewServer(addr string, registry *domain.Registry, st store.Store, refresher Refresher, logger *slog.Logger) *Server {
	s := &Server{
		registry:  registry,
		store:     st,
		refresher: refresher,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/cities", s.handleCities)
	r.Get("/news", s.handleNews)
	r.Get("/news/heatmap", s.handleHeatmap)
	r.Get("/news/city/{cityID}", s.handleCityNews)
	r.Post("/news/fetch", s.handleFetch)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // POST /news/fetch runs a full cycle inline
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.refresher.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Cities())
}

// handleNews returns recent articles, newest first. ?limit bounds the page,
// ?before=<RFC3339> pages backwards through published_at.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseListFilter(w, r)
	if !ok {
		return
	}
	s.listNews(w, r, filter)
}

func (s *Server) handleCityNews(w http.ResponseWriter, r *http.Request) {
	cityID, ok := s.registry.Lookup(chi.URLParam(r, "cityID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown city")
		return
	}

	filter, ok := s.parseListFilter(w, r)
	if !ok {
		return
	}
	filter.City = cityID
	s.listNews(w, r, filter)
}

func (s *Server) listNews(w http.ResponseWriter, r *http.Request, filter store.Filter) {
	articles, err := s.store.ListArticles(r.Context(), filter)
	if err != nil {
		s.logger.Error("list articles failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve news")
		return
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

// heatmapEntry is one city's row in the heatmap response.
type heatmapEntry struct {
	City    domain.CityID `json:"city"`
	Country string        `json:"country"`
	Lat     float64       `json:"lat"`
	Lon     float64       `json:"lon"`
	Score   int           `json:"score"`
}

// handleHeatmap recomputes every city's score from its stored window
// articles at request time, so the map decays between refresh cycles
// without any background recomputation.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	now := domain.Now()
	mentions, err := s.store.Mentions(r.Context(), now.Add(-domain.ScoreWindow))
	if err != nil {
		s.logger.Error("heatmap query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate heatmap")
		return
	}

	entries := make([]heatmapEntry, 0, s.registry.Len())
	for _, city := range s.registry.Cities() {
		entries = append(entries, heatmapEntry{
			City:    city.Name,
			Country: city.Country,
			Lat:     city.Lat,
			Lon:     city.Lon,
			Score:   domain.ScoreAt(mentions[city.Name], now),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleFetch runs one refresh cycle inline and returns its summary, the
// same path the timer takes.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	summary := s.refresher.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) parseListFilter(w http.ResponseWriter, r *http.Request) (store.Filter, bool) {
	var filter store.Filter

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return filter, false
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("before"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be an RFC3339 timestamp")
			return filter, false
		}
		filter.Before = ts
	}
	return filter, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
