package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/cdon-watcher/internal/models"
)

func dropAlert() models.PriceAlert {
	return models.PriceAlert{
		ID:        1,
		Title:     "Batman (1989) (4K Ultra HD + Blu-ray)",
		URL:       "https://cdon.fi/tuote/batman-5cb24b79a41d59c4/",
		OldPrice:  24.95,
		NewPrice:  13.95,
		AlertType: models.AlertPriceDrop,
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	n := New("", slog.Default())
	n.out = &buf

	target := dropAlert()
	target.AlertType = models.AlertTargetReached

	n.Send(context.Background(), []models.PriceAlert{dropAlert(), target})

	out := buf.String()
	assert.Contains(t, out, "PRICE ALERTS")
	assert.Contains(t, out, "Price dropped: €24.95 → €13.95")
	assert.Contains(t, out, "Target price reached: €13.95")
	assert.Contains(t, out, "https://cdon.fi/tuote/batman-5cb24b79a41d59c4/")
}

func TestNoOutputWithoutAlerts(t *testing.T) {
	var buf bytes.Buffer
	n := New("", slog.Default())
	n.out = &buf

	n.Send(context.Background(), nil)
	assert.Empty(t, buf.String())
}

func TestDiscordWebhook(t *testing.T) {
	var received discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL, slog.Default())
	n.out = io.Discard

	n.Send(context.Background(), []models.PriceAlert{dropAlert()})

	require.Len(t, received.Embeds, 1)
	embed := received.Embeds[0]
	assert.Equal(t, "Batman (1989) (4K Ultra HD + Blu-ray)", embed.Title)
	assert.Equal(t, "Price: €24.95 → €13.95", embed.Description)
	assert.Equal(t, colorPriceDrop, embed.Color)
}

func TestDiscordTargetReachedColor(t *testing.T) {
	var received discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
	}))
	defer srv.Close()

	n := New(srv.URL, slog.Default())
	n.out = io.Discard

	alert := dropAlert()
	alert.AlertType = models.AlertTargetReached
	n.Send(context.Background(), []models.PriceAlert{alert})

	require.Len(t, received.Embeds, 1)
	assert.Equal(t, colorTargetReached, received.Embeds[0].Color)
}

func TestDiscordFailureDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := New(srv.URL, slog.Default())
	n.out = io.Discard

	// Delivery failure is swallowed; the call simply returns.
	n.Send(context.Background(), []models.PriceAlert{dropAlert()})
}
