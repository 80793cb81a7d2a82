// Package config loads application configuration from environment
// variables, with optional .env file support for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const hoursPerDay = 24

// Config holds all runtime configuration.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Dedup decision thresholds.
	SimilarityThreshold            float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.85"`
	TitleSimilarityThreshold       float64 `env:"TITLE_SIMILARITY_THRESHOLD" envDefault:"0.5"`
	DescriptionSimilarityThreshold float64 `env:"DESCRIPTION_SIMILARITY_THRESHOLD" envDefault:"0"`
	OrganizationMatchRequired      bool    `env:"ORG_MATCH_REQUIRED" envDefault:"false"`

	// Dedup factor weights. Must sum to 1.0.
	TitleWeight        float64 `env:"TITLE_WEIGHT" envDefault:"0.45"`
	OrganizationWeight float64 `env:"ORGANIZATION_WEIGHT" envDefault:"0.30"`
	DeadlineWeight     float64 `env:"DEADLINE_WEIGHT" envDefault:"0.15"`
	DescriptionWeight  float64 `env:"DESCRIPTION_WEIGHT" envDefault:"0.10"`

	// Fuzzy matching candidate pool.
	FuzzyWindowDays   int `env:"FUZZY_WINDOW_DAYS" envDefault:"30"`
	FuzzyPoolLimit    int `env:"FUZZY_POOL_LIMIT" envDefault:"200"`
	DeadlineDecayDays int `env:"DEADLINE_DECAY_DAYS" envDefault:"14"`

	// Batch reconciliation.
	ReconcileBatchSize int           `env:"RECONCILE_BATCH_SIZE" envDefault:"200"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"6h"`

	// Ingestion worker.
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"10s"`

	// Feed discovery producer.
	FeedURLs         []string      `env:"FEED_URLS" envSeparator:","`
	FeedFetchRPS     float64       `env:"FEED_FETCH_RPS" envDefault:"2"`
	FeedFetchTimeout time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"30s"`
	FeedPollInterval time.Duration `env:"FEED_POLL_INTERVAL" envDefault:"15m"`

	// Database pool.
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"5"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0,1], got %v", c.SimilarityThreshold)
	}

	sum := c.TitleWeight + c.OrganizationWeight + c.DeadlineWeight + c.DescriptionWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("factor weights must sum to 1.0, got %v", sum)
	}

	if c.FuzzyWindowDays <= 0 {
		return fmt.Errorf("FUZZY_WINDOW_DAYS must be positive, got %d", c.FuzzyWindowDays)
	}

	return nil
}

// FuzzyWindow returns the fuzzy-match recency window as a duration.
func (c *Config) FuzzyWindow() time.Duration {
	return time.Duration(c.FuzzyWindowDays) * hoursPerDay * time.Hour
}
