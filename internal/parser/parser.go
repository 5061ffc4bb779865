// Package parser turns a single CDON product page into a Movie record. The
// product pages are static, so this path uses plain HTTP with a reusable
// session instead of the scripted browser the listing crawler needs.
package parser

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/maltedev/cdon-watcher/internal/extract"
	"github.com/maltedev/cdon-watcher/internal/models"
)

// priceFloor rejects shipping fees and accessory fragments that render with
// a currency marker but are too cheap to be a movie.
const priceFloor = 5.0

const productPathMarker = "/tuote/"

var amountPattern = regexp.MustCompile(`\d+[,.]?\d*\s*€`)

// shippingKeywords mark price-bearing texts that describe delivery, not the
// product.
var shippingKeywords = []string{"toimitus", "shipping"}

var titleSelectors = []string{
	"h1",
	"h2",
	`[data-testid*="title"]`,
	".product-title",
	".title",
}

var priceSelectors = []string{
	"h2",
	`[class*="price"]`,
	".price",
	`[data-testid*="price"]`,
	`[class*="product-price"]`,
}

var originalPriceSelectors = []string{
	".original-price",
	".old-price",
	`[class*="original"]`,
	"del",
	"s",
	`[style*="line-through"]`,
}

var availabilitySelectors = []string{
	".availability",
	".stock-status",
	`[class*="availability"]`,
	`[class*="stock"]`,
}

var imageSelectors = []string{
	".product-image img",
	".product-photo img",
	`[class*="product"] img`,
	"main img",
}

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://cdon.fi",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		Timeout:   10 * time.Second,
	}
}

// Parser fetches product pages over a persistent HTTP session.
type Parser struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Parser {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	return &Parser{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "product_parser"),
	}
}

// Parse fetches one product URL and assembles a Movie. A missing title or
// price rejects the whole record; every other field degrades to its zero
// value. Errors are per-URL: callers log and move on.
func (p *Parser) Parse(rawURL string) (*models.Movie, error) {
	if err := p.checkProductURL(rawURL); err != nil {
		return nil, err
	}

	doc, err := p.fetch(rawURL)
	if err != nil {
		return nil, err
	}

	title, ok := p.extractTitle(doc)
	if !ok {
		return nil, fmt.Errorf("no title found for %s", rawURL)
	}

	price, ok := p.extractPrice(doc)
	if !ok {
		return nil, fmt.Errorf("no price found for %s", rawURL)
	}

	movie := &models.Movie{
		Title:        title,
		Price:        price,
		URL:          rawURL,
		Format:       extract.FormatFromTitle(title),
		Availability: p.extractAvailability(doc),
		ImageURL:     p.extractImageURL(doc),
	}

	if original, ok := p.extractOriginalPrice(doc); ok {
		movie.OriginalPrice = original
	}
	if id, ok := extract.ProductID(rawURL); ok {
		movie.ProductID = id
	}
	if year, ok := extract.ProductionYear(doc); ok {
		movie.ProductionYear = year
	}

	return movie, nil
}

func (p *Parser) checkProductURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed product URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in product URL %q", rawURL)
	}
	if !strings.Contains(u.Path, productPathMarker) {
		return fmt.Errorf("not a product URL: %s", rawURL)
	}
	return nil
}

func (p *Parser) fetch(rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fi-FI,fi;q=0.8,en;q=0.6")
	req.Header.Set("DNT", "1")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", rawURL, err)
	}
	return doc, nil
}

func (p *Parser) extractTitle(doc *goquery.Document) (string, bool) {
	for _, selector := range titleSelectors {
		title := ""
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			candidate := strings.TrimSpace(s.Text())
			if extract.ValidTitle(candidate) {
				title = candidate
				return false
			}
			return true
		})
		if title != "" {
			return title, true
		}
	}

	// Last resort: the page title, minus the " | CDON" suffix.
	pageTitle := strings.TrimSpace(doc.Find("title").First().Text())
	if before, _, found := strings.Cut(pageTitle, " | "); found {
		candidate := strings.TrimSpace(before)
		if extract.ValidTitle(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func (p *Parser) extractPrice(doc *goquery.Document) (float64, bool) {
	for _, selector := range priceSelectors {
		price := 0.0
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if !strings.Contains(text, "€") || isShippingText(text) {
				return true
			}
			if v, ok := extract.Price(text); ok && v > priceFloor {
				price, found = v, true
				return false
			}
			return true
		})
		if found {
			return price, true
		}
	}

	// Fallback: any text node carrying a currency amount.
	price := 0.0
	found := false
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(ownText(s))
		if !amountPattern.MatchString(text) || isShippingText(text) {
			return true
		}
		if v, ok := extract.Price(text); ok && v > priceFloor {
			price, found = v, true
			return false
		}
		return true
	})

	return price, found
}

func (p *Parser) extractOriginalPrice(doc *goquery.Document) (float64, bool) {
	for _, selector := range originalPriceSelectors {
		price := 0.0
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := extract.Price(strings.TrimSpace(s.Text())); ok {
				price, found = v, true
				return false
			}
			return true
		})
		if found {
			return price, true
		}
	}
	return 0, false
}

func (p *Parser) extractAvailability(doc *goquery.Document) string {
	for _, selector := range availabilitySelectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return "In Stock"
}

func (p *Parser) extractImageURL(doc *goquery.Document) string {
	for _, selector := range imageSelectors {
		img := doc.Find(selector).First()
		if img.Length() == 0 {
			continue
		}

		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, ok = img.Attr("data-src")
		}
		if !ok || src == "" {
			continue
		}

		if strings.HasPrefix(src, "/") {
			src = p.cfg.BaseURL + src
		}
		return src
	}
	return ""
}

func isShippingText(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range shippingKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ownText returns the text directly inside a node, excluding descendants, so
// the currency fallback inspects individual text nodes instead of whole
// subtrees.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}
