// Package monitor periodically re-checks watchlist prices and delivers the
// alerts the persistence layer raised for them.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/cdon-watcher/internal/models"
)

const pendingAlertLimit = 100

// Store is the persistence surface the monitor needs.
type Store interface {
	GetWatchlist(ctx context.Context) ([]models.WatchlistMovie, error)
	SaveMovie(ctx context.Context, movie *models.Movie) error
	GetPendingAlerts(ctx context.Context, limit int) ([]models.PriceAlert, error)
	MarkAlertNotified(ctx context.Context, alertID int64) error
}

// ProductParser re-fetches one product page.
type ProductParser interface {
	Parse(rawURL string) (*models.Movie, error)
}

// Notifier delivers alerts to the user-facing channels.
type Notifier interface {
	Send(ctx context.Context, alerts []models.PriceAlert)
}

// Publisher pushes alerts onto the event stream. Optional; nil disables it.
type Publisher interface {
	PublishAlert(ctx context.Context, alert *models.PriceAlert) error
}

type Config struct {
	// CheckInterval is the time between watchlist sweeps.
	CheckInterval time.Duration
	// ItemDelay spaces out the product page fetches within one sweep.
	ItemDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		CheckInterval: 6 * time.Hour,
		ItemDelay:     2 * time.Second,
	}
}

type Monitor struct {
	store     Store
	parser    ProductParser
	notifier  Notifier
	publisher Publisher
	cfg       Config
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func New(store Store, parser ProductParser, notifier Notifier, publisher Publisher, cfg Config, logger *slog.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.ItemDelay == 0 {
		cfg.ItemDelay = def.ItemDelay
	}

	return &Monitor{
		store:     store,
		parser:    parser,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "monitor"),
		sleep:     sleepCtx,
	}
}

// Run sweeps immediately and then on every tick until the context is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		if err := m.CheckWatchlist(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("watchlist check failed", "error", err)
		}
		m.logger.Info("check complete", "next_check_in", m.cfg.CheckInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CheckWatchlist re-parses every watchlist item so the save path records a
// fresh price point, then delivers whatever alerts that raised. Per-item
// failures are logged and skipped.
func (m *Monitor) CheckWatchlist(ctx context.Context) error {
	items, err := m.store.GetWatchlist(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		m.logger.Info("watchlist is empty, nothing to check")
		return nil
	}

	m.logger.Info("checking watchlist", "items", len(items))
	for i, item := range items {
		if i > 0 {
			if err := m.sleep(ctx, m.cfg.ItemDelay); err != nil {
				return err
			}
		}

		m.logger.Info("checking price", "title", item.Title)
		movie, err := m.parser.Parse(item.URL)
		if err != nil {
			m.logger.Warn("price check failed", "title", item.Title, "error", err)
			continue
		}
		if err := m.store.SaveMovie(ctx, movie); err != nil {
			m.logger.Error("failed to record price", "title", item.Title, "error", err)
		}
	}

	return m.deliverAlerts(ctx)
}

func (m *Monitor) deliverAlerts(ctx context.Context) error {
	alerts, err := m.store.GetPendingAlerts(ctx, pendingAlertLimit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		return nil
	}

	m.notifier.Send(ctx, alerts)

	for i := range alerts {
		if m.publisher != nil {
			if err := m.publisher.PublishAlert(ctx, &alerts[i]); err != nil {
				m.logger.Error("failed to publish alert event",
					"alert_id", alerts[i].ID, "error", err)
			}
		}
		if err := m.store.MarkAlertNotified(ctx, alerts[i].ID); err != nil {
			m.logger.Error("failed to mark alert notified",
				"alert_id", alerts[i].ID, "error", err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
