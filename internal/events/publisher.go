// Package events fans price alerts out to a Redis stream so other consumers
// (bots, dashboards) can react without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/cdon-watcher/internal/models"
)

const AlertStream = "stream:price_alerts"

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher writes alert events to the Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		stream: AlertStream,
		logger: logger.With("component", "alert_publisher"),
	}
}

// PublishAlert sends one alert to the stream. Each event carries a fresh uuid
// so consumers can deduplicate across redeliveries.
func (p *Publisher) PublishAlert(ctx context.Context, alert *models.PriceAlert) error {
	eventID := uuid.New()

	payload := map[string]interface{}{
		"id":         eventID.String(),
		"type":       string(alert.AlertType),
		"movie_id":   alert.MovieID,
		"product_id": alert.ProductID,
		"title":      alert.Title,
		"url":        alert.URL,
		"old_price":  alert.OldPrice,
		"new_price":  alert.NewPrice,
		"timestamp":  alert.CreatedAt.Format(time.RFC3339),
	}

	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(dataJSON),
			"event_type": string(alert.AlertType),
			"event_id":   eventID.String(),
			"product_id": alert.ProductID,
			"timestamp":  fmt.Sprintf("%d", alert.CreatedAt.UnixNano()),
		},
	}

	if _, err := p.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("alert published",
		"event_id", eventID, "alert_type", alert.AlertType, "product_id", alert.ProductID)

	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
