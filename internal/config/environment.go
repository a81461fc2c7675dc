package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the process-level configuration. Behavioral knobs (blacklist,
// notify mode, expunge window) live in the settings table instead.
type Config struct {
	DBPath string `env:"FEEDWATCH_DB_PATH" envDefault:"data/feedwatch.db"`

	// FeedURL is the primary source (source id 1). SecondFeedURL is the
	// optional user-configured source (source id 2).
	FeedURL       string `env:"FEEDWATCH_FEED_URL"`
	SecondFeedURL string `env:"FEEDWATCH_SECOND_FEED_URL"`

	// Schedule is a cron expression for the refresh cycle.
	Schedule string `env:"FEEDWATCH_SCHEDULE" envDefault:"@every 15m"`
}

// GetConfig reads configuration from the environment.
func GetConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return cfg, nil
}
