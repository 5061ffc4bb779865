package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		id              BIGSERIAL PRIMARY KEY,
		product_id      TEXT UNIQUE,
		title           TEXT NOT NULL,
		format          TEXT,
		url             TEXT,
		image_url       TEXT,
		production_year INT,
		tmdb_id         INT,
		content_type    TEXT NOT NULL DEFAULT 'movie',
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id           BIGSERIAL PRIMARY KEY,
		movie_id     BIGINT REFERENCES movies (id),
		product_id   TEXT,
		price        DOUBLE PRECISION,
		availability TEXT,
		checked_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		id                     BIGSERIAL PRIMARY KEY,
		movie_id               BIGINT UNIQUE REFERENCES movies (id),
		product_id             TEXT,
		target_price           DOUBLE PRECISION,
		notify_on_availability BOOLEAN NOT NULL DEFAULT TRUE,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS price_alerts (
		id         BIGSERIAL PRIMARY KEY,
		movie_id   BIGINT REFERENCES movies (id),
		product_id TEXT,
		old_price  DOUBLE PRECISION,
		new_price  DOUBLE PRECISION,
		alert_type TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		notified   BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS ignored_movies (
		id         BIGSERIAL PRIMARY KEY,
		movie_id   BIGINT UNIQUE REFERENCES movies (id),
		product_id TEXT UNIQUE,
		ignored_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_product_id ON movies (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_watchlist_product_id ON watchlist (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_product_id ON price_history (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_movie_id ON price_history (movie_id)`,
	`CREATE INDEX IF NOT EXISTS idx_price_alerts_product_id ON price_alerts (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ignored_movies_product_id ON ignored_movies (product_id)`,
}

// EnsureSchema creates the tables and indexes if they do not exist yet. Safe
// to run on every startup.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
