package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/cdon-watcher/internal/models"
)

// SaveMovie upserts the movie, appends a price history point and raises any
// alerts the new price triggers, all in one transaction. Movies without a
// product id fall back to title+format identity.
func (db *DB) SaveMovie(ctx context.Context, movie *models.Movie) error {
	return db.Transaction(ctx, func(tx pgx.Tx) error {
		movieID, err := upsertMovie(ctx, tx, movie)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO price_history (movie_id, product_id, price, availability)
			VALUES ($1, $2, $3, $4)`,
			movieID, nullString(movie.ProductID), movie.Price, movie.Availability)
		if err != nil {
			return fmt.Errorf("failed to record price: %w", err)
		}

		return checkPriceAlerts(ctx, tx, movieID, movie)
	})
}

func upsertMovie(ctx context.Context, tx pgx.Tx, movie *models.Movie) (int64, error) {
	contentType := movie.ContentType
	if contentType == "" {
		contentType = "movie"
	}

	var movieID int64

	if movie.ProductID != "" {
		// Known rereleases keep their row; fields learned later (image,
		// production year, TMDB id) are backfilled, never cleared.
		err := tx.QueryRow(ctx, `
			INSERT INTO movies (product_id, title, format, url, image_url, production_year, tmdb_id, content_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (product_id) DO UPDATE SET
				last_updated    = now(),
				url             = EXCLUDED.url,
				image_url       = COALESCE(NULLIF(EXCLUDED.image_url, ''), movies.image_url),
				production_year = COALESCE(movies.production_year, EXCLUDED.production_year),
				tmdb_id         = COALESCE(movies.tmdb_id, EXCLUDED.tmdb_id)
			RETURNING id`,
			movie.ProductID, movie.Title, string(movie.Format), movie.URL,
			nullString(movie.ImageURL), nullInt(movie.ProductionYear),
			nullInt(movie.TMDBID), contentType).Scan(&movieID)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert movie %q: %w", movie.Title, err)
		}
		return movieID, nil
	}

	err := tx.QueryRow(ctx,
		`SELECT id FROM movies WHERE title = $1 AND format = $2`,
		movie.Title, string(movie.Format)).Scan(&movieID)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx,
			`UPDATE movies SET last_updated = now() WHERE id = $1`, movieID); err != nil {
			return 0, fmt.Errorf("failed to touch movie %d: %w", movieID, err)
		}
		return movieID, nil
	case errors.Is(err, pgx.ErrNoRows):
		err := tx.QueryRow(ctx, `
			INSERT INTO movies (title, format, url, image_url, production_year, content_type)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			movie.Title, string(movie.Format), movie.URL,
			nullString(movie.ImageURL), nullInt(movie.ProductionYear), contentType).Scan(&movieID)
		if err != nil {
			return 0, fmt.Errorf("failed to insert movie %q: %w", movie.Title, err)
		}
		return movieID, nil
	default:
		return 0, fmt.Errorf("failed to look up movie %q: %w", movie.Title, err)
	}
}

// checkPriceAlerts compares the just-recorded price against the previous one
// and against the watchlist target. Runs after the new history row exists, so
// the previous price is the second most recent entry.
func checkPriceAlerts(ctx context.Context, tx pgx.Tx, movieID int64, movie *models.Movie) error {
	rows, err := tx.Query(ctx, `
		SELECT price FROM price_history
		WHERE movie_id = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT 2`, movieID)
	if err != nil {
		return fmt.Errorf("failed to read price history: %w", err)
	}

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate price history: %w", err)
	}

	if len(prices) == 2 && movie.Price < prices[1] {
		oldPrice := prices[1]
		if _, err := tx.Exec(ctx, `
			INSERT INTO price_alerts (movie_id, product_id, old_price, new_price, alert_type)
			VALUES ($1, $2, $3, $4, $5)`,
			movieID, nullString(movie.ProductID), oldPrice, movie.Price,
			string(models.AlertPriceDrop)); err != nil {
			return fmt.Errorf("failed to record price drop: %w", err)
		}
		slog.Info("price drop detected",
			"movie_id", movieID, "old_price", oldPrice, "new_price", movie.Price)
	}

	var targetPrice float64
	err = tx.QueryRow(ctx,
		`SELECT target_price FROM watchlist WHERE movie_id = $1`, movieID).Scan(&targetPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read watchlist target: %w", err)
	}

	if movie.Price <= targetPrice {
		if _, err := tx.Exec(ctx, `
			INSERT INTO price_alerts (movie_id, product_id, old_price, new_price, alert_type)
			VALUES ($1, $2, $3, $4, $5)`,
			movieID, nullString(movie.ProductID), movie.Price, movie.Price,
			string(models.AlertTargetReached)); err != nil {
			return fmt.Errorf("failed to record target alert: %w", err)
		}
		slog.Info("target price reached",
			"movie_id", movieID, "target", targetPrice, "price", movie.Price)
	}

	return nil
}

// nullString maps the zero value to SQL NULL so empty product ids do not
// collide on the unique index.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
