package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/linkedin"
	"github.com/jonathan/shortlist/internal/types"
)

// DefaultTTL is how long a draft survives after its last save.
const DefaultTTL = 48 * time.Hour

// Draft is the staged review state of one sourcer for one job.
type Draft struct {
	UserID        uuid.UUID               `json:"user_id"`
	JobID         uuid.UUID               `json:"job_id"`
	Accepted      []types.ScoredCandidate `json:"accepted"`
	Rejected      []types.ScoredCandidate `json:"rejected"`
	FailedScrapes int                     `json:"failed_scrapes"`
	SavedAt       time.Time               `json:"saved_at"`
}

// URLs returns every staged or rejected URL.
func (d *Draft) URLs() linkedin.URLSet {
	set := linkedin.NewURLSet()
	for _, c := range d.Accepted {
		set.Add(c.Profile.LinkedInURL)
	}
	for _, c := range d.Rejected {
		set.Add(c.Profile.LinkedInURL)
	}
	return set
}

// MergeStats counts what AddToDraft did.
type MergeStats struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Cache loads and saves drafts with expiry.
type Cache struct {
	mu    sync.Mutex // serialises read-modify-write updates
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a cache over store. A ttl <= 0 uses DefaultTTL.
func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the clock.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// TTL is how long a draft lives after its last save.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key returns the storage key of a draft.
func Key(userID, jobID uuid.UUID) string {
	return "draft:" + userID.String() + ":" + jobID.String()
}

// Load returns the draft or nil. An expired or unreadable draft is removed and reported as absent.
func (c *Cache) Load(ctx context.Context, userID, jobID uuid.UUID) (*Draft, error) {
	key := Key(userID, jobID)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Printf("[draft] discarding corrupt draft %s: %v", key, err)
		_ = c.store.Delete(ctx, key)
		return nil, nil
	}

	if c.now().Sub(d.SavedAt) > c.ttl {
		log.Printf("[draft] draft %s expired (saved %s)", key, d.SavedAt.Format(time.RFC3339))
		if err := c.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("failed to remove expired draft: %w", err)
		}
		return nil, nil
	}
	return &d, nil
}

// Save stamps and stores the draft. It reports false when the store rejects it,
// for example when the quota is exceeded.
func (c *Cache) Save(ctx context.Context, d *Draft) bool {
	d.SavedAt = c.now().UTC()
	raw, err := json.Marshal(d)
	if err != nil {
		log.Printf("[draft] failed to encode draft: %v", err)
		return false
	}
	if err := c.store.Set(ctx, Key(d.UserID, d.JobID), raw); err != nil {
		log.Printf("[draft] failed to save draft for job %s: %v", d.JobID, err)
		return false
	}
	return true
}

// AddToDraft merges newly scored candidates into the draft for the job,
// skipping URLs already accepted or rejected there. It returns the merged
// draft and whether it was saved.
func (c *Cache) AddToDraft(ctx context.Context, userID, jobID uuid.UUID, accepted, rejected []types.ScoredCandidate, failedScrapes int) (*Draft, MergeStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.Load(ctx, userID, jobID)
	if err != nil {
		return nil, MergeStats{}, false, err
	}
	if d == nil {
		d = &Draft{UserID: userID, JobID: jobID}
	}

	var stats MergeStats
	seen := d.URLs()
	merge := func(list []types.ScoredCandidate, into *[]types.ScoredCandidate) {
		for _, cand := range list {
			if seen.Has(cand.Profile.LinkedInURL) {
				stats.Skipped++
				continue
			}
			seen.Add(cand.Profile.LinkedInURL)
			*into = append(*into, cand)
			stats.Added++
		}
	}
	merge(accepted, &d.Accepted)
	merge(rejected, &d.Rejected)
	d.FailedScrapes += failedScrapes

	return d, stats, c.Save(ctx, d), nil
}

// RemoveCandidate drops one staged candidate by temp ID. It reports whether
// a candidate was removed and saved.
func (c *Cache) RemoveCandidate(ctx context.Context, userID, jobID uuid.UUID, tempID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.Load(ctx, userID, jobID)
	if err != nil || d == nil {
		return false, err
	}

	removed := false
	filter := func(list []types.ScoredCandidate) []types.ScoredCandidate {
		out := list[:0]
		for _, cand := range list {
			if cand.TempID == tempID {
				removed = true
				continue
			}
			out = append(out, cand)
		}
		return out
	}
	d.Accepted = filter(d.Accepted)
	d.Rejected = filter(d.Rejected)
	if !removed {
		return false, nil
	}
	return c.Save(ctx, d), nil
}

// Prune removes the candidates whose temp IDs are in settled, re-reading the
// draft under the lock so candidates staged in the meantime survive. The key
// is deleted once no candidate is left. It reports whether the draft was saved
// or deleted.
func (c *Cache) Prune(ctx context.Context, userID, jobID uuid.UUID, settled []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.Load(ctx, userID, jobID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return true, nil
	}

	drop := make(map[string]struct{}, len(settled))
	for _, id := range settled {
		drop[id] = struct{}{}
	}
	keep := func(list []types.ScoredCandidate) []types.ScoredCandidate {
		var out []types.ScoredCandidate
		for _, cand := range list {
			if _, ok := drop[cand.TempID]; !ok {
				out = append(out, cand)
			}
		}
		return out
	}
	d.Accepted = keep(d.Accepted)
	d.Rejected = keep(d.Rejected)

	if len(d.Accepted) == 0 && len(d.Rejected) == 0 {
		if err := c.store.Delete(ctx, Key(userID, jobID)); err != nil {
			return false, fmt.Errorf("failed to clear draft: %w", err)
		}
		return true, nil
	}
	return c.Save(ctx, d), nil
}

// Clear deletes the draft.
func (c *Cache) Clear(ctx context.Context, userID, jobID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, Key(userID, jobID)); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

// StagedURLs returns the URLs already present in the draft, or an empty set.
func (c *Cache) StagedURLs(ctx context.Context, userID, jobID uuid.UUID) (linkedin.URLSet, error) {
	d, err := c.Load(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return linkedin.NewURLSet(), nil
	}
	return d.URLs(), nil
}
