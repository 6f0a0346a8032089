// Package config provides environment-driven configuration for the service and CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Scraper modes select the profile scraping backend.
const (
	ScraperModeAPI  = "api"
	ScraperModePage = "page"
)

// Draft store backends.
const (
	DraftStoreMemory = "memory"
	DraftStoreSQLite = "sqlite"
)

// Credit overage policies applied when a commit holds more accepted
// candidates than the submitting user has credits for.
const (
	OverageGrace  = "grace"
	OverageStrict = "strict"
)

// Config represents the service configuration.
// Fields map 1:1 to environment variables; CLI flags may override them after loading.
type Config struct {
	DatabaseURL string // DATABASE_URL
	APIKey      string // GEMINI_API_KEY

	ScraperMode   string // SCRAPER_MODE: api or page
	ScraperAPIURL string // SCRAPER_API_URL
	ScraperAPIKey string // SCRAPER_API_KEY

	StripeWebhookSecret string // STRIPE_WEBHOOK_SECRET

	DraftStore      string        // DRAFT_STORE: memory or sqlite
	DraftSQLitePath string        // DRAFT_SQLITE_PATH
	DraftTTL        time.Duration // DRAFT_TTL

	MaxURLsPerSubmission int    // MAX_URLS_PER_SUBMISSION
	OveragePolicy        string // CREDIT_OVERAGE_POLICY
	ScoreConcurrency     int    // SCORE_CONCURRENCY
}

// Default values used when the environment leaves a field unset.
const (
	DefaultMaxURLsPerSubmission = 50
	DefaultScoreConcurrency     = 4
	DefaultDraftTTL             = 48 * time.Hour
	DefaultDraftSQLitePath      = "data/drafts.db"
	maxURLsHardLimit            = 200
)

// Load reads the configuration from environment variables.
// It does not check required fields; callers decide what they need via Require*.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		APIKey:               os.Getenv("GEMINI_API_KEY"),
		ScraperMode:          getEnvString("SCRAPER_MODE", ScraperModeAPI),
		ScraperAPIURL:        os.Getenv("SCRAPER_API_URL"),
		ScraperAPIKey:        os.Getenv("SCRAPER_API_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		DraftStore:           getEnvString("DRAFT_STORE", DraftStoreMemory),
		DraftSQLitePath:      getEnvString("DRAFT_SQLITE_PATH", DefaultDraftSQLitePath),
		OveragePolicy:        getEnvString("CREDIT_OVERAGE_POLICY", OverageGrace),
		MaxURLsPerSubmission: DefaultMaxURLsPerSubmission,
		ScoreConcurrency:     DefaultScoreConcurrency,
		DraftTTL:             DefaultDraftTTL,
	}

	var err error
	if cfg.MaxURLsPerSubmission, err = getEnvInt("MAX_URLS_PER_SUBMISSION", DefaultMaxURLsPerSubmission); err != nil {
		return nil, err
	}
	if cfg.ScoreConcurrency, err = getEnvInt("SCORE_CONCURRENCY", DefaultScoreConcurrency); err != nil {
		return nil, err
	}
	if v := os.Getenv("DRAFT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DRAFT_TTL: %v", err)
		}
		cfg.DraftTTL = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	switch c.ScraperMode {
	case ScraperModeAPI, ScraperModePage:
	default:
		return fmt.Errorf("config error: SCRAPER_MODE must be %q or %q, got %q", ScraperModeAPI, ScraperModePage, c.ScraperMode)
	}

	switch c.DraftStore {
	case DraftStoreMemory, DraftStoreSQLite:
	default:
		return fmt.Errorf("config error: DRAFT_STORE must be %q or %q, got %q", DraftStoreMemory, DraftStoreSQLite, c.DraftStore)
	}

	switch c.OveragePolicy {
	case OverageGrace, OverageStrict:
	default:
		return fmt.Errorf("config error: CREDIT_OVERAGE_POLICY must be %q or %q, got %q", OverageGrace, OverageStrict, c.OveragePolicy)
	}

	if c.MaxURLsPerSubmission < 1 || c.MaxURLsPerSubmission > maxURLsHardLimit {
		return fmt.Errorf("config error: MAX_URLS_PER_SUBMISSION must be between 1 and %d, got %d", maxURLsHardLimit, c.MaxURLsPerSubmission)
	}
	if c.ScoreConcurrency < 1 {
		return fmt.Errorf("config error: SCORE_CONCURRENCY must be at least 1, got %d", c.ScoreConcurrency)
	}
	if c.DraftTTL <= 0 {
		return fmt.Errorf("config error: DRAFT_TTL must be positive")
	}
	if c.DraftStore == DraftStoreSQLite && c.DraftSQLitePath == "" {
		return fmt.Errorf("config error: DRAFT_SQLITE_PATH is required for the sqlite draft store")
	}
	return nil
}

// RequireServe checks the fields the HTTP server cannot start without.
func (c *Config) RequireServe() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.ScraperMode == ScraperModeAPI && c.ScraperAPIURL == "" {
		return fmt.Errorf("SCRAPER_API_URL environment variable is required in api scraper mode")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}
