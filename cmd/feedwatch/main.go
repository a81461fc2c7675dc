package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"feedwatch/internal/config"
	"feedwatch/internal/database"
	"feedwatch/internal/feed"
	"feedwatch/internal/notify"
)

var (
	// Version will be set during build
	Version = "dev"

	// Command line flags
	dbPath   = flag.String("db", "", "Path to database file (default: data/feedwatch.db or FEEDWATCH_DB_PATH)")
	feedURL  = flag.String("feed", "", "Primary feed URL (default: FEEDWATCH_FEED_URL)")
	schedule = flag.String("schedule", "", "Refresh schedule, cron form (default: @every 15m or FEEDWATCH_SCHEDULE)")
	version  = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Feedwatch version %s\n", Version)
		return
	}

	logger := log.New(os.Stdout, "feedwatch: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.GetConfig()
	if err != nil {
		logger.Fatalf("Failed to read configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *feedURL != "" {
		cfg.FeedURL = *feedURL
	}
	if *schedule != "" {
		cfg.Schedule = *schedule
	}

	sources := buildSources(cfg)
	if len(sources) == 0 {
		logger.Fatal("No feed sources configured; set FEEDWATCH_FEED_URL or pass -feed")
	}

	logger.Printf("Starting Feedwatch v%s", Version)
	logger.Printf("Database: %s", cfg.DBPath)
	logger.Printf("Schedule: %s", cfg.Schedule)
	for _, src := range sources {
		logger.Printf("Source %d: %s", src.ID, src.URL)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := database.NewDB(cfg.DBPath, database.DefaultConfig())
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := buildPolicy(ctx, db, logger)

	service := feed.NewService(db, logger, policy, sources)
	if err := service.Start(cfg.Schedule); err != nil {
		logger.Fatalf("Failed to start refresh schedule: %v", err)
	}
	defer service.Stop()

	// Initial refresh so a fresh install alerts without waiting a full
	// schedule interval.
	service.RefreshAll(ctx)

	<-ctx.Done()
	logger.Print("Shutting down")
}

func buildSources(cfg config.Config) []feed.Source {
	var sources []feed.Source
	if cfg.FeedURL != "" {
		sources = append(sources, feed.Source{ID: 1, URL: cfg.FeedURL})
	}
	if cfg.SecondFeedURL != "" {
		sources = append(sources, feed.Source{ID: 2, URL: cfg.SecondFeedURL})
	}
	return sources
}

func buildPolicy(ctx context.Context, db *database.DB, logger *log.Logger) *notify.Policy {
	color, err := db.GetSetting(ctx, "notify_color")
	if err != nil {
		logger.Printf("Error reading notify_color, using default: %v", err)
		color = "#ff6600"
	}
	mode, err := db.GetSettingInt(ctx, "notify_mode")
	if err != nil {
		logger.Printf("Error reading notify_mode, using default: %v", err)
		mode = 2
	}
	marker, err := db.GetSetting(ctx, "strip_marker")
	if err != nil && err != database.ErrNotFound {
		logger.Printf("Error reading strip_marker: %v", err)
	}

	return notify.NewPolicy(&logSurface{logger: logger}, logger, color, mode, marker)
}

// logSurface renders notifications to the process log. Real presentation
// surfaces plug in behind notify.Surface.
type logSurface struct {
	logger *log.Logger
}

func (s *logSurface) Show(n notify.Notification) {
	var extras []string
	if n.Sound {
		extras = append(extras, "sound")
	}
	if n.HighPriority {
		extras = append(extras, "high-priority")
	}
	for _, a := range n.Actions {
		extras = append(extras, fmt.Sprintf("%s=%s", a.Label, a.URL))
	}
	suffix := ""
	if len(extras) > 0 {
		suffix = " [" + strings.Join(extras, ", ") + "]"
	}
	s.logger.Printf("Notification %d: %s: %s%s", n.Key, n.Title, n.Body, suffix)
}
