// Package config loads all runtime settings from environment variables, with
// defaults that work against a local docker-compose stack.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Crawler  CrawlerConfig
	Browser  BrowserConfig
	Monitor  MonitorConfig
	TMDB     TMDBConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Enabled gates the alert event stream; the rest of the system runs
	// without Redis.
	Enabled bool
}

type CrawlerConfig struct {
	BaseURL        string
	Categories     []string
	MaxPages       int
	MaxRetries     int
	RetryBaseDelay time.Duration
	PageDelay      time.Duration
	ItemDelayMin   time.Duration
	ItemDelayMax   time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type MonitorConfig struct {
	CheckInterval time.Duration
	ItemDelay     time.Duration
}

type TMDBConfig struct {
	APIKey    string
	PosterDir string
}

type NotifyConfig struct {
	DiscordWebhook string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvOrDefault("API_HOST", "0.0.0.0"),
			Port:            getEnvOrDefault("API_PORT", "8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Database: getEnvOrDefault("DB_NAME", "cdon_watcher"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
		},
		Crawler: CrawlerConfig{
			BaseURL:        getEnvOrDefault("CDON_BASE_URL", "https://cdon.fi"),
			Categories:     getStringSliceOrDefault("CRAWL_CATEGORIES", nil),
			MaxPages:       getIntOrDefault("CRAWL_MAX_PAGES", 10),
			MaxRetries:     getIntOrDefault("CRAWL_MAX_RETRIES", 3),
			RetryBaseDelay: getDurationOrDefault("CRAWL_RETRY_BASE_DELAY", 2*time.Second),
			PageDelay:      getDurationOrDefault("CRAWL_PAGE_DELAY", 2*time.Second),
			ItemDelayMin:   getDurationOrDefault("CRAWL_ITEM_DELAY_MIN", 1*time.Second),
			ItemDelayMax:   getDurationOrDefault("CRAWL_ITEM_DELAY_MAX", 3*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "fi-FI,fi;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Helsinki"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "fi-FI"),
		},
		Monitor: MonitorConfig{
			CheckInterval: getDurationOrDefault("CHECK_INTERVAL", 6*time.Hour),
			ItemDelay:     getDurationOrDefault("MONITOR_ITEM_DELAY", 2*time.Second),
		},
		TMDB: TMDBConfig{
			APIKey:    getEnvOrDefault("TMDB_API_KEY", ""),
			PosterDir: getEnvOrDefault("POSTER_DIR", "./data/posters"),
		},
		Notify: NotifyConfig{
			DiscordWebhook: getEnvOrDefault("DISCORD_WEBHOOK", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	// Zero is a valid ceiling (crawl nothing), only negatives are rejected.
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("CRAWL_MAX_PAGES must not be negative")
	}

	if c.Crawler.ItemDelayMin > c.Crawler.ItemDelayMax {
		return fmt.Errorf("CRAWL_ITEM_DELAY_MIN cannot be greater than CRAWL_ITEM_DELAY_MAX")
	}

	if c.Monitor.CheckInterval < time.Minute {
		return fmt.Errorf("CHECK_INTERVAL must be at least one minute")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
