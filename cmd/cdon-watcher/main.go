package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/cdon-watcher/internal/api"
	"github.com/maltedev/cdon-watcher/internal/browser"
	"github.com/maltedev/cdon-watcher/internal/config"
	"github.com/maltedev/cdon-watcher/internal/crawler"
	"github.com/maltedev/cdon-watcher/internal/database"
	"github.com/maltedev/cdon-watcher/internal/events"
	"github.com/maltedev/cdon-watcher/internal/monitor"
	"github.com/maltedev/cdon-watcher/internal/notify"
	"github.com/maltedev/cdon-watcher/internal/parser"
	"github.com/maltedev/cdon-watcher/internal/scraper"
	"github.com/maltedev/cdon-watcher/internal/tmdb"
)

const usage = `Usage: cdon-watcher <command> [flags]

Commands:
  crawl     Crawl the Blu-ray category listings and store prices
  monitor   Periodically re-check watchlist prices and send alerts
  web       Serve the dashboard API
`

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "crawl":
		err = runCrawl(ctx, cfg, logger, os.Args[2:])
	case "monitor":
		err = runMonitor(ctx, cfg, logger)
	case "web":
		err = runWeb(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newProductParser(cfg *config.Config, logger *slog.Logger) *parser.Parser {
	return parser.New(parser.Config{BaseURL: cfg.Crawler.BaseURL}, logger)
}

// newEnricher returns nil when no TMDB key is configured; enrichment is
// optional.
func newEnricher(cfg *config.Config, logger *slog.Logger) scraper.Enricher {
	if cfg.TMDB.APIKey == "" {
		logger.Info("TMDB_API_KEY not set, skipping metadata enrichment")
		return nil
	}
	client, err := tmdb.New(tmdb.Config{
		APIKey:    cfg.TMDB.APIKey,
		PosterDir: cfg.TMDB.PosterDir,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tmdb client", "error", err)
		return nil
	}
	return client
}

func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	maxPages := fs.Int("max-pages", cfg.Crawler.MaxPages, "maximum listing pages per category")
	category := fs.String("category", "", "crawl a single category URL instead of the defaults")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer b.Close()

	fetcher := crawler.NewPlaywrightFetcher(b, cfg.Crawler.BaseURL, logger)
	lister := crawler.New(fetcher, crawler.Config{
		MaxRetries:     cfg.Crawler.MaxRetries,
		RetryBaseDelay: cfg.Crawler.RetryBaseDelay,
		PageDelay:      cfg.Crawler.PageDelay,
	}, logger)

	categories := cfg.Crawler.Categories
	if *category != "" {
		categories = []string{*category}
	}

	s := scraper.New(lister, newProductParser(cfg, logger), db, newEnricher(cfg, logger), scraper.Config{
		Categories: categories,
		MaxPages:   *maxPages,
		MinDelay:   cfg.Crawler.ItemDelayMin,
		MaxDelay:   cfg.Crawler.ItemDelayMax,
	}, logger)

	result, err := s.Run(ctx)
	if result != nil {
		logger.Info("crawl summary",
			"links", result.LinksFound,
			"saved", result.Saved,
			"skipped", result.Skipped,
			"failed", result.Failed)
	}
	return err
}

func runMonitor(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	var publisher monitor.Publisher
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		p := events.NewPublisher(redisClient, logger)
		defer p.Close()
		publisher = p
	}

	m := monitor.New(db, newProductParser(cfg, logger),
		notify.New(cfg.Notify.DiscordWebhook, logger), publisher,
		monitor.Config{
			CheckInterval: cfg.Monitor.CheckInterval,
			ItemDelay:     cfg.Monitor.ItemDelay,
		}, logger)

	logger.Info("starting price monitor", "check_interval", cfg.Monitor.CheckInterval)
	return m.Run(ctx)
}

func runWeb(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	router := api.NewRouter(api.NewHandlers(db, cfg.TMDB.PosterDir, logger))

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Info("server stopped")
	return nil
}
