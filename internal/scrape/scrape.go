// Package scrape turns LinkedIn profile URLs into structured profiles.
package scrape

import (
	"context"

	"github.com/jonathan/shortlist/internal/types"
)

// Result is the outcome of one batch.
// A URL that produced no profile is listed in FailedURLs.
type Result struct {
	Profiles   []types.ScrapedProfile
	FailedURLs []string
}

// Scraper fetches profiles for a batch of URLs. An error means the whole
// batch failed and no candidate from it may be scored.
type Scraper interface {
	Scrape(ctx context.Context, urls []string) (*Result, error)
}
