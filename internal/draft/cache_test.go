package draft

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shortlist/internal/types"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func candidate(url string, score int) types.ScoredCandidate {
	return types.ScoredCandidate{
		TempID:  uuid.NewString(),
		Profile: types.ScrapedProfile{LinkedInURL: url, FirstName: "x"},
		Score:   score,
	}
}

func newTestCache(store Store) (*Cache, *clock) {
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCache(store, DefaultTTL).WithClock(clk.now), clk
}

func TestCache_LoadMissing(t *testing.T) {
	c, _ := newTestCache(NewMemoryStore(0))

	d, err := c.Load(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCache_ExpiredDraftIsRemoved(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	c, clk := newTestCache(store)
	user, job := uuid.New(), uuid.New()

	require.True(t, c.Save(ctx, &Draft{UserID: user, JobID: job, Accepted: []types.ScoredCandidate{candidate("https://linkedin.com/in/a", 90)}}))

	clk.t = clk.t.Add(47 * time.Hour)
	d, err := c.Load(ctx, user, job)
	require.NoError(t, err)
	require.NotNil(t, d)

	clk.t = clk.t.Add(2 * time.Hour) // 49h after save
	d, err = c.Load(ctx, user, job)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, ok, err := store.Get(ctx, Key(user, job))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_SaveReportsQuota(t *testing.T) {
	c, _ := newTestCache(NewMemoryStore(64))

	ok := c.Save(context.Background(), &Draft{
		UserID:   uuid.New(),
		JobID:    uuid.New(),
		Accepted: []types.ScoredCandidate{candidate("https://linkedin.com/in/a", 90)},
	})
	assert.False(t, ok)
}

func TestCache_AddToDraftIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(NewMemoryStore(0))
	user, job := uuid.New(), uuid.New()

	accepted := []types.ScoredCandidate{candidate("https://linkedin.com/in/a", 90), candidate("https://linkedin.com/in/b", 70)}
	rejected := []types.ScoredCandidate{candidate("https://linkedin.com/in/c", 40)}

	d, stats, saved, err := c.AddToDraft(ctx, user, job, accepted, rejected, 1)
	require.NoError(t, err)
	require.True(t, saved)
	assert.Equal(t, MergeStats{Added: 3}, stats)

	// same URLs with different casing, rejected one now scoring high
	again := []types.ScoredCandidate{candidate("HTTPS://LINKEDIN.COM/IN/A", 95), candidate("https://linkedin.com/in/c ", 99)}
	d, stats, saved, err = c.AddToDraft(ctx, user, job, again, nil, 0)
	require.NoError(t, err)
	require.True(t, saved)
	assert.Equal(t, MergeStats{Skipped: 2}, stats)
	assert.Len(t, d.Accepted, 2)
	assert.Len(t, d.Rejected, 1)
	assert.Equal(t, 1, d.FailedScrapes)

	urls, err := c.StagedURLs(ctx, user, job)
	require.NoError(t, err)
	assert.True(t, urls.Has("https://linkedin.com/in/c"))
	assert.Len(t, urls, 3)
}

func TestCache_KeysAreScopedPerUserAndJob(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(NewMemoryStore(0))
	job := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	_, _, _, err := c.AddToDraft(ctx, alice, job, []types.ScoredCandidate{candidate("https://linkedin.com/in/a", 90)}, nil, 0)
	require.NoError(t, err)

	d, err := c.Load(ctx, bob, job)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCache_RemoveCandidateAndClear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(NewMemoryStore(0))
	user, job := uuid.New(), uuid.New()
	a := candidate("https://linkedin.com/in/a", 90)
	b := candidate("https://linkedin.com/in/b", 80)

	_, _, _, err := c.AddToDraft(ctx, user, job, []types.ScoredCandidate{a, b}, nil, 0)
	require.NoError(t, err)

	removed, err := c.RemoveCandidate(ctx, user, job, a.TempID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.RemoveCandidate(ctx, user, job, "unknown")
	require.NoError(t, err)
	assert.False(t, removed)

	d, err := c.Load(ctx, user, job)
	require.NoError(t, err)
	require.Len(t, d.Accepted, 1)
	assert.Equal(t, b.TempID, d.Accepted[0].TempID)

	require.NoError(t, c.Clear(ctx, user, job))
	d, err = c.Load(ctx, user, job)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCache_CorruptDraftIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	c, _ := newTestCache(store)
	user, job := uuid.New(), uuid.New()
	require.NoError(t, store.Set(ctx, Key(user, job), []byte("{not json")))

	d, err := c.Load(ctx, user, job)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCache_Prune(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(NewMemoryStore(0))
	user, job := uuid.New(), uuid.New()
	a := candidate("https://linkedin.com/in/a", 90)
	r := candidate("https://linkedin.com/in/r", 20)

	_, _, _, err := c.AddToDraft(ctx, user, job, []types.ScoredCandidate{a}, []types.ScoredCandidate{r}, 0)
	require.NoError(t, err)
	late := candidate("https://linkedin.com/in/late", 75)
	_, _, _, err = c.AddToDraft(ctx, user, job, []types.ScoredCandidate{late}, nil, 0)
	require.NoError(t, err)

	ok, err := c.Prune(ctx, user, job, []string{a.TempID, r.TempID})
	require.NoError(t, err)
	assert.True(t, ok)

	d, err := c.Load(ctx, user, job)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Len(t, d.Accepted, 1)
	assert.Equal(t, late.TempID, d.Accepted[0].TempID)
	assert.Empty(t, d.Rejected)

	ok, err = c.Prune(ctx, user, job, []string{late.TempID})
	require.NoError(t, err)
	assert.True(t, ok)
	d, err = c.Load(ctx, user, job)
	require.NoError(t, err)
	assert.Nil(t, d, "an emptied draft is deleted")

	ok, err = c.Prune(ctx, user, job, []string{"gone"})
	require.NoError(t, err)
	assert.True(t, ok)
}
