package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/cdon-watcher/internal/models"
)

// fakeRepo backs the handlers with canned data.
type fakeRepo struct {
	stats     *models.Stats
	alerts    []models.PriceAlert
	deals     []models.DealMovie
	watchlist []models.WatchlistMovie
	movies    []models.MovieWithPricing
	known     map[string]bool
	err       error

	searchedFor string
	removed     []string
}

func (f *fakeRepo) GetStats(context.Context) (*models.Stats, error) {
	return f.stats, f.err
}

func (f *fakeRepo) GetPendingAlerts(context.Context, int) ([]models.PriceAlert, error) {
	return f.alerts, f.err
}

func (f *fakeRepo) GetDeals(context.Context, int) ([]models.DealMovie, error) {
	return f.deals, f.err
}

func (f *fakeRepo) GetWatchlist(context.Context) ([]models.WatchlistMovie, error) {
	return f.watchlist, f.err
}

func (f *fakeRepo) AddToWatchlist(_ context.Context, productID string, _ float64) (bool, error) {
	return f.known[productID], f.err
}

func (f *fakeRepo) RemoveFromWatchlist(_ context.Context, productID string) error {
	f.removed = append(f.removed, productID)
	return f.err
}

func (f *fakeRepo) SearchMovies(_ context.Context, query string, _ int) ([]models.MovieWithPricing, error) {
	f.searchedFor = query
	return f.movies, f.err
}

func (f *fakeRepo) GetCheapestByFormat(context.Context, bool, int) ([]models.MovieWithPricing, error) {
	return f.movies, f.err
}

func (f *fakeRepo) IgnoreMovie(_ context.Context, productID string) (bool, error) {
	return f.known[productID], f.err
}

func serve(repo Repository, method, target string, body string) *httptest.ResponseRecorder {
	return serveWithPosterDir(repo, "", method, target, body)
}

func serveWithPosterDir(repo Repository, posterDir, method, target string, body string) *httptest.ResponseRecorder {
	router := NewRouter(NewHandlers(repo, posterDir, slog.Default()))

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetStats(t *testing.T) {
	repo := &fakeRepo{stats: &models.Stats{TotalMovies: 120, WatchlistCount: 4}}

	rec := serve(repo, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats models.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 120, stats.TotalMovies)
	assert.Equal(t, 4, stats.WatchlistCount)
}

func TestGetStatsError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}

	rec := serve(repo, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to get stats")
}

func TestGetDealsEmptyIsJSONArray(t *testing.T) {
	rec := serve(&fakeRepo{}, http.MethodGet, "/api/deals", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestSearch(t *testing.T) {
	repo := &fakeRepo{movies: []models.MovieWithPricing{
		{Title: "Blade Runner 2049 (Blu-ray)", CurrentPrice: 14.95},
	}}

	rec := serve(repo, http.MethodGet, "/api/search?q=blade", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "blade", repo.searchedFor)

	var movies []models.MovieWithPricing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &movies))
	require.Len(t, movies, 1)
	assert.Equal(t, "Blade Runner 2049 (Blu-ray)", movies[0].Title)
}

func TestSearchWithoutQuery(t *testing.T) {
	repo := &fakeRepo{}

	rec := serve(repo, http.MethodGet, "/api/search", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	assert.Empty(t, repo.searchedFor, "repository must not be queried")
}

func TestAddToWatchlist(t *testing.T) {
	repo := &fakeRepo{known: map[string]bool{"5cb24b79a41d59c4": true}}

	rec := serve(repo, http.MethodPost, "/api/watchlist",
		`{"product_id":"5cb24b79a41d59c4","target_price":15.0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Added to watchlist")
}

func TestAddToWatchlistValidation(t *testing.T) {
	repo := &fakeRepo{known: map[string]bool{}}

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"missing product id", `{"target_price":15.0}`, http.StatusBadRequest},
		{"missing target price", `{"product_id":"abc123"}`, http.StatusBadRequest},
		{"unknown product", `{"product_id":"unknown123","target_price":15.0}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(repo, http.MethodPost, "/api/watchlist", tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRemoveFromWatchlist(t *testing.T) {
	repo := &fakeRepo{}

	rec := serve(repo, http.MethodDelete, "/api/watchlist/5cb24b79a41d59c4", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"5cb24b79a41d59c4"}, repo.removed)
}

func TestIgnoreMovie(t *testing.T) {
	repo := &fakeRepo{known: map[string]bool{"5cb24b79a41d59c4": true}}

	rec := serve(repo, http.MethodPost, "/api/ignore-movie",
		`{"product_id":"5cb24b79a41d59c4"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Movie ignored")

	rec = serve(repo, http.MethodPost, "/api/ignore-movie",
		`{"product_id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheapestEndpoints(t *testing.T) {
	repo := &fakeRepo{movies: []models.MovieWithPricing{
		{Title: "Cheap Movie (Blu-ray)", CurrentPrice: 7.95},
	}}

	for _, target := range []string{"/api/cheapest-blurays", "/api/cheapest-4k-blurays"} {
		rec := serve(repo, http.MethodGet, target, "")
		assert.Equal(t, http.StatusOK, rec.Code, target)

		var movies []models.MovieWithPricing
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &movies))
		assert.Len(t, movies, 1, target)
	}
}

func TestGetPoster(t *testing.T) {
	posterDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(posterDir, "268.jpg"), []byte("jpeg-bytes"), 0o644))

	rec := serveWithPosterDir(&fakeRepo{}, posterDir, http.MethodGet, "/posters/268.jpg", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	rec = serveWithPosterDir(&fakeRepo{}, posterDir, http.MethodGet, "/posters/999.jpg", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPosterRejectsPathTraversal(t *testing.T) {
	h := NewHandlers(&fakeRepo{}, t.TempDir(), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/posters/x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("filename", "../secret.txt")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.GetPoster(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := serve(&fakeRepo{}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
