// Package browser owns the Playwright lifecycle for the listing crawler.
// Product detail pages are plain HTTP, but CDON category listings render
// client-side, so discovery needs a real browser.
package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// stealthScript hides the most common automation tells before any page
// script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['fi-FI', 'fi', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
`

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

// DefaultOptions presents a Finnish desktop Chrome profile. CDON serves
// Finnish-language markup only to clients that look the part, and the
// extraction selectors depend on that markup.
func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "fi-FI,fi;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Helsinki",
		Locale:         "fi-FI",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

func fillDefaults(opts *Options) {
	def := DefaultOptions()
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = def.ViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = def.ViewportHeight
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = def.AcceptLanguage
	}
	if opts.TimezoneID == "" {
		opts.TimezoneID = def.TimezoneID
	}
	if opts.Locale == "" {
		opts.Locale = def.Locale
	}
	if opts.ExtraHeaders == nil {
		opts.ExtraHeaders = def.ExtraHeaders
	}
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	fillDefaults(opts)
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--window-size=1920,1080",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to install init script: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Context() playwright.BrowserContext {
	return b.context
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
