package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/cdon-watcher/internal/models"
)

// Correlated subqueries shared by the dashboard views. The current price is
// the latest history point, the previous one is the point before it.
const (
	currentPriceSQ = `(SELECT price FROM price_history ph
		WHERE ph.movie_id = m.id ORDER BY ph.checked_at DESC, ph.id DESC LIMIT 1)`
	previousPriceSQ = `(SELECT price FROM price_history ph
		WHERE ph.movie_id = m.id ORDER BY ph.id DESC OFFSET 1 LIMIT 1)`
	lowestPriceSQ  = `(SELECT MIN(price) FROM price_history ph WHERE ph.movie_id = m.id)`
	highestPriceSQ = `(SELECT MAX(price) FROM price_history ph WHERE ph.movie_id = m.id)`
)

func (db *DB) GetStats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}

	if err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM movies`).Scan(&stats.TotalMovies); err != nil {
		return nil, fmt.Errorf("failed to count movies: %w", err)
	}

	if err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM price_alerts WHERE created_at::date = CURRENT_DATE`,
	).Scan(&stats.PriceDropsToday); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	if err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM watchlist`).Scan(&stats.WatchlistCount); err != nil {
		return nil, fmt.Errorf("failed to count watchlist: %w", err)
	}

	var lastUpdate *time.Time
	if err := db.pool.QueryRow(ctx,
		`SELECT max(last_updated) FROM movies`).Scan(&lastUpdate); err != nil {
		return nil, fmt.Errorf("failed to read last update: %w", err)
	}
	if lastUpdate != nil {
		stats.LastUpdate = lastUpdate.Format(time.RFC3339)
	}

	return stats, nil
}

// SearchMovies matches titles case-insensitively. A blank query returns an
// empty result instead of everything.
func (db *DB) SearchMovies(ctx context.Context, query string, limit int) ([]models.MovieWithPricing, error) {
	if strings.TrimSpace(query) == "" {
		return []models.MovieWithPricing{}, nil
	}

	rows, err := db.pool.Query(ctx, `
		SELECT m.id, m.product_id, m.title, COALESCE(m.format, ''), COALESCE(m.url, ''), m.image_url,
		       m.tmdb_id, m.content_type, m.first_seen, m.last_updated,
		       `+currentPriceSQ+`, `+lowestPriceSQ+`, `+highestPriceSQ+`
		FROM movies m
		WHERE m.title ILIKE '%' || $1 || '%'
		ORDER BY m.title
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search movies: %w", err)
	}
	defer rows.Close()

	return scanMoviesWithPricing(rows)
}

// GetDeals returns movies whose latest price point is below the one before
// it, smallest drop first to mirror the dashboard's layout.
func (db *DB) GetDeals(ctx context.Context, limit int) ([]models.DealMovie, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT m.id, m.product_id, m.title, COALESCE(m.format, ''), m.url, m.image_url, m.tmdb_id,
		       `+currentPriceSQ+` AS current_price,
		       `+previousPriceSQ+` AS previous_price,
		       `+lowestPriceSQ+`, `+highestPriceSQ+`
		FROM movies m
		WHERE `+currentPriceSQ+` IS NOT NULL
		  AND `+previousPriceSQ+` IS NOT NULL
		  AND `+currentPriceSQ+` < `+previousPriceSQ+`
		ORDER BY `+previousPriceSQ+` - `+currentPriceSQ+` ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	var deals []models.DealMovie
	for rows.Next() {
		var d models.DealMovie
		var productID, url, imageURL *string
		var tmdbID *int
		var lowest, highest *float64

		if err := rows.Scan(&d.ID, &productID, &d.Title, &d.Format, &url, &imageURL,
			&tmdbID, &d.CurrentPrice, &d.PreviousPrice, &lowest, &highest); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}

		d.ProductID = deref(productID)
		d.URL = deref(url)
		d.ImageURL = deref(imageURL)
		if tmdbID != nil {
			d.TMDBID = *tmdbID
		}
		if lowest != nil {
			d.LowestPrice = *lowest
		}
		if highest != nil {
			d.HighestPrice = *highest
		}
		d.PriceChange = d.PreviousPrice - d.CurrentPrice
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// GetCheapestByFormat lists the cheapest movies of one format, skipping
// anything ignored or already on the watchlist. fourK selects the 4K variant
// instead of plain Blu-ray.
func (db *DB) GetCheapestByFormat(ctx context.Context, fourK bool, limit int) ([]models.MovieWithPricing, error) {
	formatCond := `m.format ILIKE '%Blu-ray%' AND m.format NOT ILIKE '%4K%'`
	if fourK {
		formatCond = `m.format ILIKE '%4K%'`
	}

	rows, err := db.pool.Query(ctx, `
		SELECT m.id, m.product_id, m.title, COALESCE(m.format, ''), COALESCE(m.url, ''), m.image_url,
		       m.tmdb_id, m.content_type, m.first_seen, m.last_updated,
		       `+currentPriceSQ+` AS current_price, `+lowestPriceSQ+`, `+highestPriceSQ+`
		FROM movies m
		WHERE `+formatCond+`
		  AND m.id NOT IN (SELECT movie_id FROM ignored_movies WHERE movie_id IS NOT NULL)
		  AND m.id NOT IN (SELECT movie_id FROM watchlist WHERE movie_id IS NOT NULL)
		  AND `+currentPriceSQ+` IS NOT NULL
		ORDER BY current_price ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cheapest movies: %w", err)
	}
	defer rows.Close()

	return scanMoviesWithPricing(rows)
}

func (db *DB) GetWatchlist(ctx context.Context) ([]models.WatchlistMovie, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT m.id, m.product_id, m.title, COALESCE(m.format, ''), COALESCE(m.url, ''), m.image_url,
		       m.tmdb_id, m.content_type, m.first_seen, m.last_updated,
		       `+currentPriceSQ+`, `+lowestPriceSQ+`, `+highestPriceSQ+`,
		       w.target_price
		FROM watchlist w
		JOIN movies m ON w.movie_id = m.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []models.WatchlistMovie
	for rows.Next() {
		var item models.WatchlistMovie
		var productID, imageURL *string
		var tmdbID *int
		var current, lowest, highest, target *float64

		if err := rows.Scan(&item.ID, &productID, &item.Title, &item.Format,
			&item.URL, &imageURL, &tmdbID, &item.ContentType,
			&item.FirstSeen, &item.LastUpdated,
			&current, &lowest, &highest, &target); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}

		item.ProductID = deref(productID)
		item.ImageURL = deref(imageURL)
		if tmdbID != nil {
			item.TMDBID = *tmdbID
		}
		item.CurrentPrice = derefFloat(current)
		item.LowestPrice = derefFloat(lowest)
		item.HighestPrice = derefFloat(highest)
		item.TargetPrice = derefFloat(target)
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddToWatchlist returns false when no movie with the product id exists.
// Re-adding updates the target price.
func (db *DB) AddToWatchlist(ctx context.Context, productID string, targetPrice float64) (bool, error) {
	var movieID int64
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM movies WHERE product_id = $1`, productID).Scan(&movieID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up movie: %w", err)
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO watchlist (movie_id, product_id, target_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (movie_id) DO UPDATE SET
			target_price = EXCLUDED.target_price,
			created_at   = now()`,
		movieID, productID, targetPrice)
	if err != nil {
		return false, fmt.Errorf("failed to add to watchlist: %w", err)
	}
	return true, nil
}

func (db *DB) RemoveFromWatchlist(ctx context.Context, productID string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM watchlist WHERE product_id = $1`, productID)
	if err != nil {
		return fmt.Errorf("failed to remove from watchlist: %w", err)
	}
	return nil
}

// IgnoreMovie hides a movie from the cheapest views. Returns false when the
// product id is unknown.
func (db *DB) IgnoreMovie(ctx context.Context, productID string) (bool, error) {
	var movieID int64
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM movies WHERE product_id = $1`, productID).Scan(&movieID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up movie: %w", err)
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO ignored_movies (movie_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (movie_id) DO NOTHING`,
		movieID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to ignore movie: %w", err)
	}
	return true, nil
}

// GetPendingAlerts returns unnotified alerts, newest first, joined with the
// movie title and url for rendering.
func (db *DB) GetPendingAlerts(ctx context.Context, limit int) ([]models.PriceAlert, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT a.id, a.movie_id, COALESCE(a.product_id, ''), a.old_price, a.new_price,
		       a.alert_type, a.created_at, a.notified, m.title, COALESCE(m.url, '')
		FROM price_alerts a
		JOIN movies m ON a.movie_id = m.id
		WHERE NOT a.notified
		ORDER BY a.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.PriceAlert
	for rows.Next() {
		var a models.PriceAlert
		if err := rows.Scan(&a.ID, &a.MovieID, &a.ProductID, &a.OldPrice, &a.NewPrice,
			&a.AlertType, &a.CreatedAt, &a.Notified, &a.Title, &a.URL); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (db *DB) MarkAlertNotified(ctx context.Context, alertID int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE price_alerts SET notified = TRUE WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to mark alert notified: %w", err)
	}
	return nil
}

func scanMoviesWithPricing(rows pgx.Rows) ([]models.MovieWithPricing, error) {
	var movies []models.MovieWithPricing
	for rows.Next() {
		var m models.MovieWithPricing
		var productID, imageURL *string
		var tmdbID *int
		var current, lowest, highest *float64

		if err := rows.Scan(&m.ID, &productID, &m.Title, &m.Format, &m.URL, &imageURL,
			&tmdbID, &m.ContentType, &m.FirstSeen, &m.LastUpdated,
			&current, &lowest, &highest); err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}

		m.ProductID = deref(productID)
		m.ImageURL = deref(imageURL)
		if tmdbID != nil {
			m.TMDBID = *tmdbID
		}
		m.CurrentPrice = derefFloat(current)
		m.LowestPrice = derefFloat(lowest)
		m.HighestPrice = derefFloat(highest)
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
