// Package notify renders price alerts to the console and, when a webhook is
// configured, to Discord.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/maltedev/cdon-watcher/internal/models"
)

// Discord embed accent colors.
const (
	colorPriceDrop     = 0x00FF00
	colorTargetReached = 0x0099FF
)

type Notifier struct {
	webhookURL string
	client     *http.Client
	out        io.Writer
	logger     *slog.Logger
}

// New builds a notifier. An empty webhookURL disables Discord delivery;
// console output is always on.
func New(webhookURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		out:        os.Stdout,
		logger:     logger.With("component", "notifier"),
	}
}

// Send pushes the alerts to every configured channel. Discord failures are
// logged, not returned: a dead webhook must not stall the monitor loop.
func (n *Notifier) Send(ctx context.Context, alerts []models.PriceAlert) {
	if len(alerts) == 0 {
		return
	}

	n.printConsole(alerts)

	if n.webhookURL == "" {
		return
	}
	for _, alert := range alerts {
		if err := n.sendDiscord(ctx, alert); err != nil {
			n.logger.Error("discord notification failed",
				"alert_id", alert.ID, "error", err)
		}
	}
}

func (n *Notifier) printConsole(alerts []models.PriceAlert) {
	fmt.Fprintln(n.out, "\n==================================================")
	fmt.Fprintln(n.out, "PRICE ALERTS")
	fmt.Fprintln(n.out, "==================================================")

	for _, alert := range alerts {
		switch alert.AlertType {
		case models.AlertTargetReached:
			fmt.Fprintf(n.out, "%s\n   Target price reached: €%.2f\n", alert.Title, alert.NewPrice)
		default:
			fmt.Fprintf(n.out, "%s\n   Price dropped: €%.2f → €%.2f\n",
				alert.Title, alert.OldPrice, alert.NewPrice)
		}
		fmt.Fprintf(n.out, "   View: %s\n\n", alert.URL)
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Color       int    `json:"color"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (n *Notifier) sendDiscord(ctx context.Context, alert models.PriceAlert) error {
	color := colorPriceDrop
	if alert.AlertType == models.AlertTargetReached {
		color = colorTargetReached
	}

	msg := discordMessage{Embeds: []discordEmbed{{
		Title:       alert.Title,
		Description: fmt.Sprintf("Price: €%.2f → €%.2f", alert.OldPrice, alert.NewPrice),
		URL:         alert.URL,
		Color:       color,
	}}}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected webhook status %d", resp.StatusCode)
	}
	return nil
}
