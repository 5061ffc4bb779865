// Package scraper runs the full collection pipeline: discover product links
// from the category listings, parse each product page, keep the Blu-ray
// releases, optionally enrich them against TMDB, and store the results.
package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/cdon-watcher/internal/models"
	"github.com/maltedev/cdon-watcher/internal/ratelimit"
	"github.com/maltedev/cdon-watcher/internal/tmdb"
)

// Default category listings on cdon.fi: the elokuvat catalog filtered by
// media format preset.
var DefaultCategories = []string{
	"https://cdon.fi/elokuvat/?facets=property_preset_media_format%3Ablu-ray&q=",
	"https://cdon.fi/elokuvat/?facets=property_preset_media_format%3A4k%20ultra%20hd&q=",
}

// LinkLister walks one category listing and returns product URLs.
type LinkLister interface {
	CrawlCategory(ctx context.Context, categoryURL string, maxPages int) ([]string, error)
}

// ProductParser turns one product URL into a Movie.
type ProductParser interface {
	Parse(rawURL string) (*models.Movie, error)
}

// MovieStore persists parsed movies.
type MovieStore interface {
	SaveMovie(ctx context.Context, movie *models.Movie) error
}

// Enricher resolves a title to TMDB metadata. Optional; a nil Enricher skips
// enrichment entirely.
type Enricher interface {
	Enrich(ctx context.Context, title string, year int) (tmdbID int, posterFile string, ok bool)
}

type Config struct {
	Categories []string
	// MaxPages is the listing-page ceiling per category. Zero crawls no
	// pages at all and is a valid request, so New never substitutes a
	// default for it.
	MaxPages int
	// Delay bounds between product page fetches.
	MinDelay time.Duration
	MaxDelay time.Duration
}

func DefaultScraperConfig() Config {
	return Config{
		Categories: DefaultCategories,
		MaxPages:   10,
		MinDelay:   1 * time.Second,
		MaxDelay:   3 * time.Second,
	}
}

// Result summarizes one pipeline run.
type Result struct {
	LinksFound int
	Parsed     int
	Saved      int
	Skipped    int
	Failed     int
}

type Scraper struct {
	lister   LinkLister
	parser   ProductParser
	store    MovieStore
	enricher Enricher
	limiter  ratelimit.RateLimiter
	cfg      Config
	logger   *slog.Logger
}

func New(lister LinkLister, parser ProductParser, store MovieStore, enricher Enricher, cfg Config, logger *slog.Logger) *Scraper {
	def := DefaultScraperConfig()
	if len(cfg.Categories) == 0 {
		cfg.Categories = def.Categories
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}

	return &Scraper{
		lister:   lister,
		parser:   parser,
		store:    store,
		enricher: enricher,
		limiter:  ratelimit.NewSimpleRateLimiter(cfg.MinDelay, cfg.MaxDelay),
		cfg:      cfg,
		logger:   logger.With("component", "scraper"),
	}
}

// Run executes one full crawl across all configured categories. Per-product
// failures are logged and skipped; only a cancelled context or a listing
// failure aborts the run. The partial Result is returned either way.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	logger := s.logger.With("run_id", runID)
	logger.Info("starting crawl",
		"categories", len(s.cfg.Categories),
		"max_pages", s.cfg.MaxPages)

	result := &Result{}
	seen := make(map[string]bool)
	var links []string

	for _, category := range s.cfg.Categories {
		urls, err := s.lister.CrawlCategory(ctx, category, s.cfg.MaxPages)
		if err != nil {
			return result, err
		}
		for _, u := range urls {
			if seen[u] {
				continue
			}
			seen[u] = true
			links = append(links, u)
		}
	}
	result.LinksFound = len(links)
	logger.Info("listing crawl finished", "product_links", len(links))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}

		movie, err := s.parser.Parse(link)
		if err != nil {
			result.Failed++
			logger.Warn("product parse failed", "url", link, "error", err)
			continue
		}
		result.Parsed++

		if !movie.IsBluRay() {
			result.Skipped++
			logger.Debug("skipping non-bluray item", "title", movie.Title, "format", movie.Format)
			continue
		}

		s.enrich(ctx, movie)

		if err := s.store.SaveMovie(ctx, movie); err != nil {
			result.Failed++
			logger.Error("failed to save movie", "title", movie.Title, "error", err)
			continue
		}
		result.Saved++
		logger.Info("saved movie",
			"title", movie.Title,
			"price", movie.Price,
			"format", movie.Format)
	}

	logger.Info("crawl finished",
		"links", result.LinksFound,
		"saved", result.Saved,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

func (s *Scraper) enrich(ctx context.Context, movie *models.Movie) {
	if tmdb.IsTVSeries(movie.Title) {
		movie.ContentType = "tv"
	} else {
		movie.ContentType = "movie"
	}

	if s.enricher == nil {
		return
	}

	year := movie.ProductionYear
	if year == 0 {
		if y, ok := tmdb.YearFromTitle(movie.Title); ok {
			year = y
		}
	}

	if id, poster, ok := s.enricher.Enrich(ctx, movie.Title, year); ok {
		movie.TMDBID = id
		// The cached poster replaces the scraped image; the dashboard
		// serves it from the poster dir.
		if poster != "" {
			movie.ImageURL = poster
		}
	}
}
