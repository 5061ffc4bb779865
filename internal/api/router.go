package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the dashboard API.
func NewRouter(h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/posters/{filename}", h.GetPoster)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Get("/alerts", h.GetAlerts)
		r.Get("/deals", h.GetDeals)
		r.Get("/search", h.Search)
		r.Get("/cheapest-blurays", h.GetCheapestBluRays)
		r.Get("/cheapest-4k-blurays", h.GetCheapest4KBluRays)

		r.Get("/watchlist", h.GetWatchlist)
		r.Post("/watchlist", h.AddToWatchlist)
		r.Delete("/watchlist/{productID}", h.RemoveFromWatchlist)

		r.Post("/ignore-movie", h.IgnoreMovie)
	})

	return r
}
