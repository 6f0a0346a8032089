package server

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/shortlist/internal/billing"
	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/csvimport"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/draft"
	"github.com/jonathan/shortlist/internal/llm"
	"github.com/jonathan/shortlist/internal/scoring"
	"github.com/jonathan/shortlist/internal/scrape"
	"github.com/jonathan/shortlist/internal/server/ratelimit"
	"github.com/jonathan/shortlist/internal/submission"
)

// Runtime holds the long-lived collaborators shared by the server and the CLI.
type Runtime struct {
	DB       *db.DB
	Drafts   *draft.Cache
	Pipeline *submission.Pipeline

	closers []func()
}

// Close releases everything OpenRuntime acquired, newest first.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// NewScraper selects the scraping backend named by cfg.ScraperMode.
func NewScraper(cfg *config.Config) scrape.Scraper {
	if cfg.ScraperMode == config.ScraperModePage {
		return scrape.NewPageScraper(false)
	}
	return scrape.NewAPIScraper(cfg.ScraperAPIURL, cfg.ScraperAPIKey)
}

// NewDraftStore opens the draft backend named by cfg.DraftStore. The returned
// func closes it.
func NewDraftStore(ctx context.Context, cfg *config.Config) (draft.Store, func(), error) {
	if cfg.DraftStore != config.DraftStoreSQLite {
		return draft.NewMemoryStore(0), func() {}, nil
	}
	store, err := draft.OpenSQLite(ctx, cfg.DraftSQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open draft store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("[drafts] close failed: %v", err)
		}
	}, nil
}

// OpenRuntime connects to the database, applies the schema, seeds the tier
// catalog and builds the submission pipeline.
func OpenRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to database: %w", err))
	}
	rt.DB = database
	rt.closers = append(rt.closers, database.Close)

	if err := database.Migrate(ctx); err != nil {
		return fail(err)
	}
	if err := database.SeedTiers(ctx, config.Tiers); err != nil {
		return fail(err)
	}

	store, closeStore, err := NewDraftStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	rt.closers = append(rt.closers, closeStore)
	rt.Drafts = draft.NewCache(store, cfg.DraftTTL)

	client, err := llm.NewGeminiClient(ctx, llm.ConfigFromEnv(), cfg.APIKey)
	if err != nil {
		return fail(fmt.Errorf("failed to create model client: %w", err))
	}
	rt.closers = append(rt.closers, func() {
		if err := client.Close(); err != nil {
			log.Printf("[llm] close failed: %v", err)
		}
	})

	rt.Pipeline = submission.New(database, NewScraper(cfg), scoring.NewLLMScorer(client), rt.Drafts,
		submission.OptionsFromConfig(cfg))
	return rt, nil
}

// Open builds a fully wired server from the environment configuration.
func Open(ctx context.Context, cfg *config.Config, port int) (*Server, error) {
	if err := cfg.RequireServe(); err != nil {
		return nil, err
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT config: %w", err)
	}
	pwCfg, err := config.NewPasswordConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load password config: %w", err)
	}

	rt, err := OpenRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Store:       rt.DB,
		Pipeline:    rt.Pipeline,
		Drafts:      rt.Drafts,
		Users:       NewUserService(rt.DB, pwCfg),
		JWT:         NewJWTService(jwtCfg),
		RateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		Import:      csvimport.DefaultOptions(),
		Close:       rt.Close,
	}
	if cfg.StripeWebhookSecret != "" {
		deps.Webhook = billing.NewWebhookHandler(rt.DB, cfg.StripeWebhookSecret)
	} else {
		log.Printf("[billing] STRIPE_WEBHOOK_SECRET not set; webhook endpoint disabled")
	}
	return New(port, deps), nil
}
