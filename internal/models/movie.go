package models

import (
	"time"
)

// Format is the physical media classification derived from a title.
type Format string

const (
	Format4KBluRay Format = "4K Blu-ray"
	FormatBluRay   Format = "Blu-ray"
	FormatDVD      Format = "DVD"
)

// Movie is the result of parsing one product page. Optional fields use zero
// values: OriginalPrice == 0, ProductionYear == 0, empty ImageURL/ProductID
// all mean "not found".
type Movie struct {
	Title          string  `json:"title"`
	Price          float64 `json:"price"`
	OriginalPrice  float64 `json:"original_price,omitempty"`
	URL            string  `json:"url"`
	Format         Format  `json:"format"`
	Availability   string  `json:"availability"`
	ImageURL       string  `json:"image_url,omitempty"`
	ProductID      string  `json:"product_id,omitempty"`
	ProductionYear int     `json:"production_year,omitempty"`
	TMDBID         int     `json:"tmdb_id,omitempty"`
	ContentType    string  `json:"content_type,omitempty"`
}

// IsBluRay reports whether the item should be collected: the format resolved
// to a Blu-ray variant, or the title itself names one.
func (m *Movie) IsBluRay() bool {
	return m.Format == FormatBluRay || m.Format == Format4KBluRay
}

type AlertType string

const (
	AlertPriceDrop     AlertType = "price_drop"
	AlertTargetReached AlertType = "target_reached"
	AlertBackInStock   AlertType = "back_in_stock"
)

// PriceAlert is a stored alert row joined with the movie it belongs to.
type PriceAlert struct {
	ID        int64     `json:"id"`
	MovieID   int64     `json:"movie_id"`
	ProductID string    `json:"product_id"`
	OldPrice  float64   `json:"old_price"`
	NewPrice  float64   `json:"new_price"`
	AlertType AlertType `json:"alert_type"`
	CreatedAt time.Time `json:"created_at"`
	Notified  bool      `json:"notified"`
	Title     string    `json:"title,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// MovieWithPricing is a stored movie with aggregated price history, used by
// the search and cheapest views.
type MovieWithPricing struct {
	ID           int64     `json:"id"`
	ProductID    string    `json:"product_id"`
	Title        string    `json:"title"`
	Format       Format    `json:"format"`
	URL          string    `json:"url"`
	ImageURL     string    `json:"image_url,omitempty"`
	TMDBID       int       `json:"tmdb_id,omitempty"`
	ContentType  string    `json:"content_type"`
	FirstSeen    time.Time `json:"first_seen"`
	LastUpdated  time.Time `json:"last_updated"`
	CurrentPrice float64   `json:"current_price,omitempty"`
	LowestPrice  float64   `json:"lowest_price,omitempty"`
	HighestPrice float64   `json:"highest_price,omitempty"`
}

// DealMovie is a stored movie whose two most recent price points show a drop.
type DealMovie struct {
	ID            int64   `json:"id"`
	ProductID     string  `json:"product_id"`
	Title         string  `json:"title"`
	Format        Format  `json:"format"`
	URL           string  `json:"url"`
	ImageURL      string  `json:"image_url,omitempty"`
	TMDBID        int     `json:"tmdb_id,omitempty"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousPrice float64 `json:"previous_price"`
	PriceChange   float64 `json:"price_change"`
	LowestPrice   float64 `json:"lowest_price"`
	HighestPrice  float64 `json:"highest_price"`
}

// WatchlistMovie is a watchlist entry joined with its movie and pricing.
type WatchlistMovie struct {
	MovieWithPricing
	TargetPrice float64 `json:"target_price"`
}

// Stats backs the dashboard header.
type Stats struct {
	TotalMovies     int    `json:"total_movies"`
	PriceDropsToday int    `json:"price_drops_today"`
	WatchlistCount  int    `json:"watchlist_count"`
	LastUpdate      string `json:"last_update,omitempty"`
}
