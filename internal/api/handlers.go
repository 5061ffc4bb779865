// Package api serves the dashboard endpoints over chi.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/cdon-watcher/internal/models"
)

// Repository is the slice of the database layer the dashboard reads and
// writes.
type Repository interface {
	GetStats(ctx context.Context) (*models.Stats, error)
	GetPendingAlerts(ctx context.Context, limit int) ([]models.PriceAlert, error)
	GetDeals(ctx context.Context, limit int) ([]models.DealMovie, error)
	GetWatchlist(ctx context.Context) ([]models.WatchlistMovie, error)
	AddToWatchlist(ctx context.Context, productID string, targetPrice float64) (bool, error)
	RemoveFromWatchlist(ctx context.Context, productID string) error
	SearchMovies(ctx context.Context, query string, limit int) ([]models.MovieWithPricing, error)
	GetCheapestByFormat(ctx context.Context, fourK bool, limit int) ([]models.MovieWithPricing, error)
	IgnoreMovie(ctx context.Context, productID string) (bool, error)
}

// Listing sizes match the dashboard's grid layouts.
const (
	alertLimit    = 10
	dealLimit     = 12
	searchLimit   = 20
	cheapestLimit = 21
)

type Handlers struct {
	repo      Repository
	posterDir string
	logger    *slog.Logger
}

func NewHandlers(repo Repository, posterDir string, logger *slog.Logger) *Handlers {
	return &Handlers{
		repo:      repo,
		posterDir: posterDir,
		logger:    logger.With("component", "api"),
	}
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.repo.GetPendingAlerts(r.Context(), alertLimit)
	if err != nil {
		h.logger.Error("failed to get alerts", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get alerts")
		return
	}
	if alerts == nil {
		alerts = []models.PriceAlert{}
	}
	h.respondJSON(w, http.StatusOK, alerts)
}

func (h *Handlers) GetDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.repo.GetDeals(r.Context(), dealLimit)
	if err != nil {
		h.logger.Error("failed to get deals", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get deals")
		return
	}
	if deals == nil {
		deals = []models.DealMovie{}
	}
	h.respondJSON(w, http.StatusOK, deals)
}

func (h *Handlers) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.GetWatchlist(r.Context())
	if err != nil {
		h.logger.Error("failed to get watchlist", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get watchlist")
		return
	}
	if items == nil {
		items = []models.WatchlistMovie{}
	}
	h.respondJSON(w, http.StatusOK, items)
}

// WatchlistRequest adds or updates a watchlist entry.
type WatchlistRequest struct {
	ProductID   string  `json:"product_id"`
	TargetPrice float64 `json:"target_price"`
}

func (h *Handlers) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req WatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.TargetPrice <= 0 {
		h.respondError(w, http.StatusBadRequest, "target_price is required")
		return
	}

	added, err := h.repo.AddToWatchlist(r.Context(), req.ProductID, req.TargetPrice)
	if err != nil {
		h.logger.Error("failed to add to watchlist", "error", err, "product_id", req.ProductID)
		h.respondError(w, http.StatusInternalServerError, "failed to add to watchlist")
		return
	}
	if !added {
		h.respondError(w, http.StatusNotFound, "unknown product_id")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Added to watchlist"})
}

func (h *Handlers) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		h.respondError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	if err := h.repo.RemoveFromWatchlist(r.Context(), productID); err != nil {
		h.logger.Error("failed to remove from watchlist", "error", err, "product_id", productID)
		h.respondError(w, http.StatusInternalServerError, "failed to remove from watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Removed from watchlist"})
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.respondJSON(w, http.StatusOK, []models.MovieWithPricing{})
		return
	}

	movies, err := h.repo.SearchMovies(r.Context(), query, searchLimit)
	if err != nil {
		h.logger.Error("search failed", "error", err, "query", query)
		h.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if movies == nil {
		movies = []models.MovieWithPricing{}
	}
	h.respondJSON(w, http.StatusOK, movies)
}

func (h *Handlers) GetCheapestBluRays(w http.ResponseWriter, r *http.Request) {
	h.cheapest(w, r, false)
}

func (h *Handlers) GetCheapest4KBluRays(w http.ResponseWriter, r *http.Request) {
	h.cheapest(w, r, true)
}

func (h *Handlers) cheapest(w http.ResponseWriter, r *http.Request, fourK bool) {
	movies, err := h.repo.GetCheapestByFormat(r.Context(), fourK, cheapestLimit)
	if err != nil {
		h.logger.Error("failed to get cheapest movies", "error", err, "four_k", fourK)
		h.respondError(w, http.StatusInternalServerError, "failed to get cheapest movies")
		return
	}
	if movies == nil {
		movies = []models.MovieWithPricing{}
	}
	h.respondJSON(w, http.StatusOK, movies)
}

// IgnoreMovieRequest hides a movie from the cheapest views.
type IgnoreMovieRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handlers) IgnoreMovie(w http.ResponseWriter, r *http.Request) {
	var req IgnoreMovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	ignored, err := h.repo.IgnoreMovie(r.Context(), req.ProductID)
	if err != nil {
		h.logger.Error("failed to ignore movie", "error", err, "product_id", req.ProductID)
		h.respondError(w, http.StatusInternalServerError, "failed to ignore movie")
		return
	}
	if !ignored {
		h.respondError(w, http.StatusNotFound, "unknown product_id")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Movie ignored"})
}

// GetPoster serves a cached poster image from the poster directory.
func (h *Handlers) GetPoster(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || filename != filepath.Base(filename) {
		h.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	posterPath := filepath.Join(h.posterDir, filename)
	if _, err := os.Stat(posterPath); err != nil {
		h.respondError(w, http.StatusNotFound, "poster not found")
		return
	}

	http.ServeFile(w, r, posterPath)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
