package config

import (
	"os"
	"testing"
	"time"
)

const (
	testEnvPostgresDSN = "POSTGRES_DSN"
	testPostgresDSN    = "postgres://localhost/test"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv(testEnvPostgresDSN)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AppEnv != "local" {
		t.Errorf("AppEnv = %q, want local", cfg.AppEnv)
	}

	if cfg.SimilarityThreshold != 0.85 {
		t.Errorf("SimilarityThreshold = %v, want 0.85", cfg.SimilarityThreshold)
	}

	if cfg.FuzzyWindowDays != 30 {
		t.Errorf("FuzzyWindowDays = %v, want 30", cfg.FuzzyWindowDays)
	}

	if got := cfg.FuzzyWindow(); got != 30*24*time.Hour {
		t.Errorf("FuzzyWindow() = %v, want 720h", got)
	}

	if cfg.ReconcileBatchSize != 200 {
		t.Errorf("ReconcileBatchSize = %v, want 200", cfg.ReconcileBatchSize)
	}
}

func TestLoad_WeightValidation(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TITLE_WEIGHT", "0.9")

	if _, err := Load(); err == nil {
		t.Error("expected error for weights not summing to 1.0")
	}
}

func TestLoad_ThresholdValidation(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Error("expected error for out-of-range similarity threshold")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("ORG_MATCH_REQUIRED", "true")
	t.Setenv("FUZZY_WINDOW_DAYS", "14")
	t.Setenv("FEED_URLS", "https://a.example.org/feed,https://b.example.org/rss")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.OrganizationMatchRequired {
		t.Error("OrganizationMatchRequired = false, want true")
	}

	if cfg.FuzzyWindowDays != 14 {
		t.Errorf("FuzzyWindowDays = %v, want 14", cfg.FuzzyWindowDays)
	}

	if len(cfg.FeedURLs) != 2 {
		t.Errorf("FeedURLs = %v, want 2 entries", cfg.FeedURLs)
	}
}
