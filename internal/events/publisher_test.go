package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/cdon-watcher/internal/models"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testAlert() *models.PriceAlert {
	return &models.PriceAlert{
		ID:        42,
		MovieID:   7,
		ProductID: "5cb24b79a41d59c4",
		OldPrice:  24.95,
		NewPrice:  13.95,
		AlertType: models.AlertPriceDrop,
		CreatedAt: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		Title:     "Batman (1989) (4K Ultra HD + Blu-ray)",
		URL:       "https://cdon.fi/tuote/batman-5cb24b79a41d59c4/",
	}
}

func TestPublishAlert(t *testing.T) {
	mockRedis := new(MockRedisClient)

	var captured *redis.XAddArgs
	mockRedis.On("XAdd", mock.Anything, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		captured = args
		return true
	})).Return(nil)

	pub := NewPublisher(mockRedis, slog.Default())
	err := pub.PublishAlert(context.Background(), testAlert())
	require.NoError(t, err)

	mockRedis.AssertExpectations(t)
	require.NotNil(t, captured)
	assert.Equal(t, AlertStream, captured.Stream)

	values := captured.Values.(map[string]interface{})
	assert.Equal(t, "price_drop", values["event_type"])
	assert.Equal(t, "5cb24b79a41d59c4", values["product_id"])
	assert.NotEmpty(t, values["event_id"])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &payload))
	assert.Equal(t, "price_drop", payload["type"])
	assert.Equal(t, 24.95, payload["old_price"])
	assert.Equal(t, 13.95, payload["new_price"])
	assert.Equal(t, "Batman (1989) (4K Ultra HD + Blu-ray)", payload["title"])
}

func TestPublishAlertUniqueEventIDs(t *testing.T) {
	mockRedis := new(MockRedisClient)

	ids := make(map[string]bool)
	mockRedis.On("XAdd", mock.Anything, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		values := args.Values.(map[string]interface{})
		ids[values["event_id"].(string)] = true
		return true
	})).Return(nil)

	pub := NewPublisher(mockRedis, slog.Default())
	for i := 0; i < 3; i++ {
		require.NoError(t, pub.PublishAlert(context.Background(), testAlert()))
	}

	assert.Len(t, ids, 3)
}

func TestPublishAlertRedisFailure(t *testing.T) {
	mockRedis := new(MockRedisClient)
	mockRedis.On("XAdd", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	pub := NewPublisher(mockRedis, slog.Default())
	err := pub.PublishAlert(context.Background(), testAlert())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish")
}
