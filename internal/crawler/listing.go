// Package crawler walks a CDON category listing page by page and collects
// product URLs. Fetching is abstracted behind PageFetcher so the pagination
// and retry logic can run against a fake in tests.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// PageFetcher loads one listing page and returns the product URLs on it. An
// empty slice with a nil error means the page rendered but carried no
// products, which is how CDON presents pages past the end of a category.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]string, error)
}

type Config struct {
	// MaxRetries is the number of extra attempts per page after the first.
	MaxRetries int
	// RetryBaseDelay is the wait before the first retry; it doubles on each
	// subsequent one.
	RetryBaseDelay time.Duration
	// PageDelay is the pause between listing pages.
	PageDelay time.Duration
	// EmptyPageLimit stops the crawl after this many consecutive pages
	// without products.
	EmptyPageLimit int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		PageDelay:      2 * time.Second,
		EmptyPageLimit: 3,
	}
}

type Crawler struct {
	fetcher PageFetcher
	cfg     Config
	logger  *slog.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(fetcher PageFetcher, cfg Config, logger *slog.Logger) *Crawler {
	def := DefaultConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = def.PageDelay
	}
	if cfg.EmptyPageLimit == 0 {
		cfg.EmptyPageLimit = def.EmptyPageLimit
	}

	return &Crawler{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With("component", "listing_crawler"),
		sleep:   sleepCtx,
	}
}

// CrawlCategory walks the category's pages in order and returns the union of
// product URLs, deduplicated, in first-seen order. A page that fails for a
// non-transient reason, or that exhausts its retries, counts as empty; the
// crawl keeps going until the empty-page limit or maxPages. maxPages <= 0
// means nothing to do.
func (c *Crawler) CrawlCategory(ctx context.Context, categoryURL string, maxPages int) ([]string, error) {
	urls := []string{}
	if maxPages <= 0 {
		return urls, nil
	}

	seen := make(map[string]struct{})
	emptyStreak := 0

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				return urls, err
			}
		}

		pageURL := buildPageURL(categoryURL, page)
		links, err := c.fetchWithRetry(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return urls, ctx.Err()
			}
			c.logger.Warn("listing page failed, counting as empty",
				"page", page, "url", pageURL, "error", err)
			links = nil
		}

		added := 0
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			urls = append(urls, link)
			added++
		}

		c.logger.Info("listing page crawled",
			"page", page, "found", len(links), "new", added)

		if len(links) == 0 {
			emptyStreak++
			if emptyStreak >= c.cfg.EmptyPageLimit {
				c.logger.Info("stopping crawl, consecutive empty pages",
					"streak", emptyStreak, "last_page", page)
				break
			}
		} else {
			emptyStreak = 0
		}
	}

	return urls, nil
}

func (c *Crawler) fetchWithRetry(ctx context.Context, pageURL string) ([]string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay << (attempt - 1)
			c.logger.Warn("retrying listing page",
				"url", pageURL, "attempt", attempt, "delay", delay, "error", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		links, err := c.fetcher.FetchPage(ctx, pageURL)
		if err == nil {
			return links, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("giving up on %s after %d retries: %w", pageURL, c.cfg.MaxRetries, lastErr)
}

// buildPageURL returns the bare category URL for page 1 and appends a page
// parameter for the rest, respecting an existing query string.
func buildPageURL(categoryURL string, page int) string {
	if page <= 1 {
		return categoryURL
	}
	sep := "?"
	if strings.Contains(categoryURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", categoryURL, sep, page)
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
