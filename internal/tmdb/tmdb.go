// Package tmdb enriches scraped movies with The Movie Database ids and
// poster art. Everything here is best-effort: enrichment failures never block
// a crawl.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/cdon-watcher/internal/ratelimit"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultImageURL = "https://image.tmdb.org/t/p/w500"
)

// tvIndicators mark box-set titles that resolve on the TV search endpoint
// rather than the movie one.
var tvIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bSeason\s+\d+`),
	regexp.MustCompile(`(?i)\bSeries\s+\d+`),
	regexp.MustCompile(`(?i)\bComplete\s+Series`),
	regexp.MustCompile(`(?i)\bTV\s+Series`),
	regexp.MustCompile(`(?i)\bS\d+\b`),
	regexp.MustCompile(`(?i)\bEpisode\s+\d+`),
	regexp.MustCompile(`(?i)\bComplete\s+Collection`),
	regexp.MustCompile(`(?i)\bComplete\s+Seasons`),
}

// Cleanup patterns, longest first so partial matches do not leave fragments.
var (
	discCountPattern   = regexp.MustCompile(`(?i)\(\d+\s+disc\)`)
	importPattern      = regexp.MustCompile(`(?i)\(Import\)`)
	formatParenPattern = regexp.MustCompile(`(?i)\([^)]*\b(Blu-ray|DVD|4K|UHD|Ultra|3D)\b[^)]*\)`)
	tvSuffixPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*[-–—:]*\s*The\s+Complete\s+Collection\b`),
		regexp.MustCompile(`(?i)\s*[-–—:]*\s*Complete\s+Collection\b`),
		regexp.MustCompile(`(?i)\s*[-–—:]*\s*The\s+Complete\s+Series\b`),
		regexp.MustCompile(`(?i)\s*[-–—:]*\s*Complete\s+Series\b`),
		regexp.MustCompile(`(?i)\s*[-–—:]*\s*Season\s+\d+[-–]?\d*`),
		regexp.MustCompile(`(?i)\s*[-–—:]*\s*Series\s+\d+`),
	}
	editionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bUltimate\s+Collector's\s+Edition\b`),
		regexp.MustCompile(`(?i)\bDirector's\s+Cut\b`),
		regexp.MustCompile(`(?i)\b(Blu-ray|DVD|4K|UHD|Ultra|Ultimate|Collector's|Special|Edition|Extended|Cut|Collection)\b`),
	}
	strayParenPattern = regexp.MustCompile(`\(\s*[+&\-]+\s*\)`)
	yearParenPattern  = regexp.MustCompile(`\s*\((\d{4})\)`)
	emptyParenPattern = regexp.MustCompile(`\s*\(\s*\)`)
	punctPattern      = regexp.MustCompile(`[:\-–—]+`)
	spacePattern      = regexp.MustCompile(`\s+`)
)

type Config struct {
	APIKey    string
	PosterDir string
	BaseURL   string
	ImageURL  string
	Timeout   time.Duration
}

type Client struct {
	cfg     Config
	client  *http.Client
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
}

// searchResult is the slice of a TMDB search response both endpoints share.
type searchResult struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Name       string `json:"name"`
	PosterPath string `json:"poster_path"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tmdb api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ImageURL == "" {
		cfg.ImageURL = defaultImageURL
	}
	if cfg.PosterDir == "" {
		cfg.PosterDir = "./data/posters"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	if err := os.MkdirAll(cfg.PosterDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create poster dir: %w", err)
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		// TMDB tolerates ~50 req/s; stay well under it.
		limiter: ratelimit.NewSimpleRateLimiter(20*time.Millisecond, 40*time.Millisecond),
		logger:  logger.With("component", "tmdb"),
	}, nil
}

// Enrich resolves a scraped title to a TMDB id and a locally cached poster.
// Box-set titles try the TV endpoint first, everything else tries movies with
// a TV fallback. ok is false when nothing matched.
func (c *Client) Enrich(ctx context.Context, title string, year int) (tmdbID int, posterFile string, ok bool) {
	if IsTVSeries(title) {
		if id, poster, found := c.lookup(ctx, "tv", title, year); found {
			return id, poster, true
		}
	}

	if id, poster, found := c.lookup(ctx, "movie", title, year); found {
		return id, poster, true
	}

	if !IsTVSeries(title) {
		return c.lookup(ctx, "tv", title, year)
	}
	return 0, "", false
}

func (c *Client) lookup(ctx context.Context, kind, title string, year int) (int, string, bool) {
	result, err := c.search(ctx, kind, title, year)
	if err != nil {
		c.logger.Error("tmdb search failed", "kind", kind, "title", title, "error", err)
		return 0, "", false
	}
	if result == nil {
		c.logger.Info("no tmdb match", "kind", kind, "title", title)
		return 0, "", false
	}

	if result.PosterPath == "" {
		return result.ID, "", true
	}

	posterFile, err := c.DownloadPoster(ctx, result.PosterPath, result.ID)
	if err != nil {
		c.logger.Error("poster download failed", "tmdb_id", result.ID, "error", err)
		return result.ID, "", true
	}
	return result.ID, posterFile, true
}

func (c *Client) search(ctx context.Context, kind, title string, year int) (*searchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cleaned := CleanTitle(title, kind == "tv")

	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("query", cleaned)
	params.Set("include_adult", "false")
	params.Set("language", "en-US")
	params.Set("page", "1")
	if year > 0 {
		if kind == "tv" {
			params.Set("first_air_date_year", strconv.Itoa(year))
		} else {
			params.Set("year", strconv.Itoa(year))
		}
	}

	endpoint := fmt.Sprintf("%s/search/%s?%s", c.cfg.BaseURL, kind, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from tmdb search", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	if len(parsed.Results) == 0 {
		return nil, nil
	}
	// TMDB orders by relevance; take the top hit.
	return &parsed.Results[0], nil
}

// DownloadPoster caches the w500 poster under the poster dir as <id>.jpg and
// returns the local path. Already-downloaded posters are not refetched.
func (c *Client) DownloadPoster(ctx context.Context, posterPath string, tmdbID int) (string, error) {
	if posterPath == "" {
		return "", fmt.Errorf("empty poster path")
	}

	localPath := filepath.Join(c.cfg.PosterDir, fmt.Sprintf("%d.jpg", tmdbID))
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ImageURL+posterPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("poster request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching poster", resp.StatusCode)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create poster file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("failed to write poster: %w", err)
	}

	c.logger.Info("poster downloaded", "tmdb_id", tmdbID, "path", localPath)
	return localPath, nil
}

// IsTVSeries reports whether a title names a TV box set.
func IsTVSeries(title string) bool {
	for _, pattern := range tvIndicators {
		if pattern.MatchString(title) {
			return true
		}
	}
	return false
}

// CleanTitle strips format, edition and box-set noise so the remaining words
// match TMDB's canonical titles.
func CleanTitle(title string, isTV bool) string {
	cleaned := discCountPattern.ReplaceAllString(title, "")
	cleaned = importPattern.ReplaceAllString(cleaned, "")
	cleaned = formatParenPattern.ReplaceAllString(cleaned, "")

	if isTV {
		for _, pattern := range tvSuffixPatterns {
			cleaned = pattern.ReplaceAllString(cleaned, "")
		}
	}

	for _, pattern := range editionPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	cleaned = strayParenPattern.ReplaceAllString(cleaned, "")
	cleaned = yearParenPattern.ReplaceAllString(cleaned, "")
	cleaned = emptyParenPattern.ReplaceAllString(cleaned, "")
	cleaned = punctPattern.ReplaceAllString(cleaned, " ")
	cleaned = spacePattern.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}

// YearFromTitle pulls a parenthesized release year out of a title.
func YearFromTitle(title string) (int, bool) {
	match := yearParenPattern.FindStringSubmatch(title)
	if match == nil {
		return 0, false
	}
	year, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return year, true
}
