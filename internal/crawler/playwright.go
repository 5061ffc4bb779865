package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/cdon-watcher/internal/browser"
)

const productLinkSelector = `a[href*="/tuote/"]`

// listingContainerSelector matches the product grid shell. Pages past the end
// of a category still render the shell, just with no product links in it.
const listingContainerSelector = `main, [data-testid="product-grid"], .products`

// PlaywrightFetcher loads listing pages through a scripted browser. CDON
// renders the product grid client-side, so a plain GET returns an empty
// shell.
type PlaywrightFetcher struct {
	browser *browser.Browser
	baseURL string
	logger  *slog.Logger
}

func NewPlaywrightFetcher(b *browser.Browser, baseURL string, logger *slog.Logger) *PlaywrightFetcher {
	return &PlaywrightFetcher{
		browser: b,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "playwright_fetcher"),
	}
}

func (f *PlaywrightFetcher) FetchPage(ctx context.Context, pageURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := f.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(20000),
	}); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	if _, err := page.WaitForSelector(productLinkSelector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(15000),
	}); err != nil {
		// No product links. If the grid shell rendered, this is a page past
		// the end of the category, which the crawl treats as empty. If not
		// even the shell is there, the navigation genuinely failed.
		if _, cerr := page.WaitForSelector(listingContainerSelector, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(5000),
		}); cerr != nil {
			return nil, fmt.Errorf("no listing content on %s: %w", pageURL, err)
		}
		f.logger.Debug("listing page rendered without products", "url", pageURL)
		return nil, nil
	}

	// Let lazy-loaded cards settle before collecting.
	time.Sleep(1 * time.Second)

	anchors, err := page.Locator(productLinkSelector).All()
	if err != nil {
		return nil, fmt.Errorf("failed to collect product links on %s: %w", pageURL, err)
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, anchor := range anchors {
		href, err := anchor.GetAttribute("href")
		if err != nil || href == "" {
			continue
		}

		abs, ok := f.absolutize(href)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	}

	return urls, nil
}

func (f *PlaywrightFetcher) absolutize(href string) (string, bool) {
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href, true
	case strings.HasPrefix(href, "/"):
		return f.baseURL + href, true
	default:
		return "", false
	}
}
