package submission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/draft"
	"github.com/jonathan/shortlist/internal/linkedin"
	"github.com/jonathan/shortlist/internal/scrape"
	"github.com/jonathan/shortlist/internal/types"
)

type fakeStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*types.Job
	saved     map[uuid.UUID][]types.ScoredCandidate
	credits   map[uuid.UUID]int
	commitErr error
	deductErr error
	deducted  []string

	// commitStarted is closed when CommitCandidates is entered, which then
	// waits for releaseCommit.
	commitStarted chan struct{}
	releaseCommit chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    map[uuid.UUID]*types.Job{},
		saved:   map[uuid.UUID][]types.ScoredCandidate{},
		credits: map[uuid.UUID]int{},
	}
}

func (s *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) ListCandidateURLs(_ context.Context, jobID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var urls []string
	for _, c := range s.saved[jobID] {
		urls = append(urls, c.Profile.LinkedInURL)
	}
	return urls, nil
}

func (s *fakeStore) CommitCandidates(_ context.Context, jobID, _ uuid.UUID, candidates []types.ScoredCandidate) (*db.CommitOutcome, error) {
	if s.commitStarted != nil {
		close(s.commitStarted)
		<-s.releaseCommit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return nil, s.commitErr
	}
	job := s.jobs[jobID]
	existing := linkedin.NewURLSet()
	for _, c := range s.saved[jobID] {
		existing.Add(c.Profile.LinkedInURL)
	}
	out := &db.CommitOutcome{Requested: job.CandidatesRequested}
	for _, c := range candidates {
		if existing.Has(c.Profile.LinkedInURL) {
			continue
		}
		existing.Add(c.Profile.LinkedInURL)
		s.saved[jobID] = append(s.saved[jobID], c)
		out.Inserted++
	}
	out.Total = len(s.saved[jobID])
	if job.Status != types.JobStatusCompleted && out.Total >= out.Requested {
		job.Status = types.JobStatusCompleted
		out.JobCompleted = true
	}
	return out, nil
}

func (s *fakeStore) CreditBalance(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits[userID], nil
}

func (s *fakeStore) DeductCredits(_ context.Context, userID uuid.UUID, n int, _ *uuid.UUID, desc string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deductErr != nil {
		return 0, 0, s.deductErr
	}
	bal := s.credits[userID]
	d := min(n, bal)
	s.credits[userID] = bal - d
	s.deducted = append(s.deducted, desc)
	return d, s.credits[userID], nil
}

type fakeScraper struct {
	failed map[string]bool
	err    error
	calls  [][]string
}

func (f *fakeScraper) Scrape(_ context.Context, urls []string) (*scrape.Result, error) {
	f.calls = append(f.calls, urls)
	if f.err != nil {
		return nil, f.err
	}
	res := &scrape.Result{}
	for _, u := range urls {
		if f.failed[u] {
			res.FailedURLs = append(res.FailedURLs, u)
			continue
		}
		name := u[strings.LastIndex(strings.TrimSuffix(u, "/"), "/")+1:]
		res.Profiles = append(res.Profiles, types.ScrapedProfile{LinkedInURL: u, FirstName: name})
	}
	return res, nil
}

// fakeScorer scores by profile first name; names missing from the map fail.
type fakeScorer struct {
	scores map[string]int
}

func (f *fakeScorer) Score(_ context.Context, _ types.JobContext, p types.ScrapedProfile) (types.ScoreResult, error) {
	s, ok := f.scores[p.FirstName]
	if !ok {
		return types.ScoreResult{}, errors.New("model unavailable")
	}
	return types.ScoreResult{Score: s, Reasoning: "fit"}, nil
}

type fixture struct {
	store   *fakeStore
	scraper *fakeScraper
	drafts  *draft.Cache
	p       *Pipeline
	userID  uuid.UUID
	jobID   uuid.UUID
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	f := &fixture{
		store:   newFakeStore(),
		scraper: &fakeScraper{failed: map[string]bool{}},
		drafts:  draft.NewCache(draft.NewMemoryStore(0), config.DefaultDraftTTL),
		userID:  uuid.New(),
		jobID:   uuid.New(),
	}
	f.store.jobs[f.jobID] = &types.Job{
		ID:                  f.jobID,
		Title:               "Backend Engineer",
		Status:              types.JobStatusClaimed,
		CandidatesRequested: 10,
	}
	f.store.credits[f.userID] = 10
	scorer := &fakeScorer{scores: map[string]int{"alice": 85, "bob": 72, "carol": 40, "dave": 91}}
	f.p = New(f.store, f.scraper, scorer, f.drafts, Options{MaxURLs: 5, ScoreConcurrency: 2, OveragePolicy: policy})
	return f
}

func profileURL(name string) string {
	return "https://www.linkedin.com/in/" + name
}

func TestSubmit_StagesVerdictsInDraft(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	ctx := context.Background()

	res, err := f.p.Submit(ctx, Request{
		UserID: f.userID,
		JobID:  f.jobID,
		URLs:   []string{profileURL("alice"), profileURL("bob"), profileURL("carol")},
	})
	require.NoError(t, err)

	assert.Equal(t, types.SubmitModeStage, res.Mode)
	assert.Len(t, res.Accepted, 2)
	assert.Len(t, res.Rejected, 1)
	assert.Equal(t, 40, res.Rejected[0].Score)
	assert.True(t, res.DraftSaved)
	assert.Nil(t, res.Commit)
	assert.Empty(t, f.store.saved[f.jobID], "staging must not persist")

	d, err := f.drafts.Load(ctx, f.userID, f.jobID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Len(t, d.Accepted, 2)
	assert.Len(t, d.Rejected, 1)
}

func TestSubmit_AllDuplicatesSkipsScraping(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	ctx := context.Background()

	f.store.saved[f.jobID] = []types.ScoredCandidate{{Profile: types.ScrapedProfile{LinkedInURL: profileURL("alice")}}}
	_, err := f.p.Submit(ctx, Request{UserID: f.userID, JobID: f.jobID, URLs: []string{profileURL("carol")}})
	require.NoError(t, err)
	require.Len(t, f.scraper.calls, 1)

	res, err := f.p.Submit(ctx, Request{
		UserID: f.userID,
		JobID:  f.jobID,
		URLs:   []string{"  HTTPS://www.linkedin.com/in/Alice ", profileURL("carol"), profileURL("carol")},
	})
	require.NoError(t, err)

	assert.Len(t, f.scraper.calls, 1, "scraper must not be called when nothing is new")
	assert.Len(t, res.Duplicates, 3)
	assert.Empty(t, res.Accepted)
	assert.Empty(t, res.Rejected)
}

func TestSubmit_ScrapeFailureAbortsBatch(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	f.scraper.err = errors.New("upstream 503")

	_, err := f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: []string{profileURL("alice")}})

	var scrapeErr *ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	d, err := f.drafts.Load(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSubmit_PerURLScrapeFailuresAreReported(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	f.scraper.failed[profileURL("bob")] = true

	res, err := f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: []string{profileURL("alice"), profileURL("bob")}})
	require.NoError(t, err)

	assert.Equal(t, 1, res.FailedScrapes)
	assert.Equal(t, []string{profileURL("bob")}, res.FailedURLs)
	assert.Len(t, res.Accepted, 1)
}

func TestSubmit_ScoringFailureIsRejected(t *testing.T) {
	f := newFixture(t, config.OverageGrace)

	res, err := f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: []string{profileURL("erin")}})
	require.NoError(t, err)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 0, res.Rejected[0].Score)
	assert.Equal(t, types.UnscoredReasoning, res.Rejected[0].Reasoning)
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		mode string
	}{
		{name: "too many", urls: []string{profileURL("a"), profileURL("b"), profileURL("c"), profileURL("d"), profileURL("e"), profileURL("f")}},
		{name: "no valid urls", urls: []string{"https://example.com/in/alice", "  "}},
		{name: "unknown mode", urls: []string{profileURL("alice")}, mode: "later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.OverageGrace)
			_, err := f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: tt.urls, Mode: tt.mode})
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.Empty(t, f.scraper.calls)
		})
	}
}

func TestSubmit_JobState(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	ctx := context.Background()

	_, err := f.p.Submit(ctx, Request{UserID: f.userID, JobID: uuid.New(), URLs: []string{profileURL("alice")}})
	assert.ErrorIs(t, err, ErrJobNotFound)

	f.store.jobs[f.jobID].Status = types.JobStatusCompleted
	_, err = f.p.Submit(ctx, Request{UserID: f.userID, JobID: f.jobID, URLs: []string{profileURL("alice")}})
	assert.ErrorIs(t, err, ErrJobClosed)
}

func TestSubmit_PersistModeCommitsAndCompletesJob(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	f.store.jobs[f.jobID].CandidatesRequested = 2

	res, err := f.p.Submit(context.Background(), Request{
		UserID: f.userID,
		JobID:  f.jobID,
		URLs:   []string{profileURL("alice"), profileURL("dave"), profileURL("carol")},
		Mode:   types.SubmitModePersist,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Commit)
	assert.Equal(t, 2, res.Commit.Committed)
	assert.True(t, res.Commit.JobCompleted)
	assert.Equal(t, 2, res.Commit.CreditsDeducted)
	assert.Equal(t, 8, res.Commit.CreditsRemaining)
	assert.Len(t, f.store.saved[f.jobID], 2)
	assert.Equal(t, types.JobStatusCompleted, f.store.jobs[f.jobID].Status)
}

func TestSubmit_ProgressEvents(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	var stages []string
	_, err := f.p.Submit(context.Background(), Request{
		UserID:     f.userID,
		JobID:      f.jobID,
		URLs:       []string{profileURL("alice"), profileURL("bob")},
		OnProgress: func(e ProgressEvent) { stages = append(stages, e.Stage) },
	})
	require.NoError(t, err)

	require.NotEmpty(t, stages)
	assert.Equal(t, StageValidated, stages[0])
	assert.Equal(t, StageStaged, stages[len(stages)-1])
	assert.Contains(t, stages, StageScraping)
	assert.Contains(t, stages, StageScoring)
}

func stage(t *testing.T, f *fixture, names ...string) {
	t.Helper()
	var urls []string
	for _, n := range names {
		urls = append(urls, profileURL(n))
	}
	_, err := f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: urls})
	require.NoError(t, err)
}

func TestComplete_GraceCommitsAllAndFloorsCredits(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	f.store.credits[f.userID] = 1
	stage(t, f, "alice", "bob", "carol")

	res, err := f.p.Complete(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Committed)
	assert.Equal(t, 0, res.Deferred)
	assert.Equal(t, 1, res.CreditsDeducted)
	assert.Equal(t, 0, res.CreditsRemaining)
	assert.Len(t, f.store.saved[f.jobID], 2)
	require.Len(t, f.store.deducted, 1)
	assert.Contains(t, f.store.deducted[0], "2 candidates committed for Backend Engineer")

	d, err := f.drafts.Load(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)
	assert.Nil(t, d, "draft is cleared after commit")
}

func TestComplete_StrictDefersOverage(t *testing.T) {
	f := newFixture(t, config.OverageStrict)
	f.store.credits[f.userID] = 1
	stage(t, f, "alice", "bob")

	res, err := f.p.Complete(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Committed)
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, 0, res.CreditsRemaining)

	d, err := f.drafts.Load(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Len(t, d.Accepted, 1)
	assert.Equal(t, profileURL("bob"), d.Accepted[0].Profile.LinkedInURL)

	_, err = f.p.Complete(context.Background(), f.userID, f.jobID)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr, "no credits left")
}

func TestComplete_CreditFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	stage(t, f, "alice")
	f.store.deductErr = errors.New("connection reset")

	res, err := f.p.Complete(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Committed)
	assert.NotEmpty(t, res.CreditError)
	assert.Len(t, f.store.saved[f.jobID], 1)
}

func TestComplete_CommitFailureKeepsDraft(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	stage(t, f, "alice", "dave")
	f.store.commitErr = errors.New("deadlock detected")

	_, err := f.p.Complete(context.Background(), f.userID, f.jobID)
	require.Error(t, err)

	d, err := f.drafts.Load(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Len(t, d.Accepted, 2)
}

func TestComplete_EmptyDraft(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	stage(t, f, "carol")

	_, err := f.p.Complete(context.Background(), f.userID, f.jobID)
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestSubmit_StagedURLsAreDuplicates(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	stage(t, f, "alice", "carol")

	res, err := f.p.Submit(context.Background(), Request{
		UserID: f.userID,
		JobID:  f.jobID,
		URLs:   []string{profileURL("alice"), profileURL("carol"), profileURL("bob")},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{profileURL("alice"), profileURL("carol")}, res.Duplicates)
	assert.Len(t, res.Accepted, 1)
	assert.Equal(t, []string{profileURL("bob")}, f.scraper.calls[1])
}

func TestComplete_KeepsCandidatesStagedDuringCommit(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	ctx := context.Background()
	stage(t, f, "alice", "carol")

	f.store.commitStarted = make(chan struct{})
	f.store.releaseCommit = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.p.Complete(ctx, f.userID, f.jobID)
		done <- err
	}()
	<-f.store.commitStarted

	res, err := f.p.Submit(ctx, Request{UserID: f.userID, JobID: f.jobID, URLs: []string{profileURL("dave")}})
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	require.True(t, res.DraftSaved)

	close(f.store.releaseCommit)
	require.NoError(t, <-done)

	require.Len(t, f.store.saved[f.jobID], 1)
	assert.Equal(t, profileURL("alice"), f.store.saved[f.jobID][0].Profile.LinkedInURL)

	d, err := f.drafts.Load(ctx, f.userID, f.jobID)
	require.NoError(t, err)
	require.NotNil(t, d, "candidate staged during the commit must stay in the draft")
	require.Len(t, d.Accepted, 1)
	assert.Equal(t, profileURL("dave"), d.Accepted[0].Profile.LinkedInURL)
	assert.Empty(t, d.Rejected, "rejected candidates settled by the commit are dropped")
}

func TestComplete_StrictKeepsRejectedWithDeferred(t *testing.T) {
	f := newFixture(t, config.OverageStrict)
	f.store.credits[f.userID] = 1
	stage(t, f, "alice", "bob", "carol")

	_, err := f.p.Complete(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)

	d, err := f.drafts.Load(context.Background(), f.userID, f.jobID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Len(t, d.Accepted, 1)
	assert.Len(t, d.Rejected, 1)
}

func TestSubmit_RequestCapOverridesDefault(t *testing.T) {
	f := newFixture(t, config.OverageGrace)
	urls := []string{profileURL("alice"), profileURL("bob"), profileURL("carol"), profileURL("dave"), profileURL("erin"), profileURL("frank")}

	_, err := f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: urls})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	res, err := f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: urls, MaxURLs: 10})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 3)

	_, err = f.p.Submit(context.Background(), Request{UserID: f.userID, JobID: f.jobID, URLs: urls, MaxURLs: 3})
	assert.ErrorAs(t, err, &vErr)
}
