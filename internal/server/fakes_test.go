package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/draft"
	"github.com/jonathan/shortlist/internal/submission"
	"github.com/jonathan/shortlist/internal/types"
)

// memStore is an in-memory Store.
type memStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*db.UserProfile
	jobs       map[uuid.UUID]*types.Job
	candidates map[uuid.UUID]types.Candidate
	txns       []types.CreditTransaction
	failWith   error
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[uuid.UUID]*db.UserProfile{},
		jobs:       map[uuid.UUID]*types.Job{},
		candidates: map[uuid.UUID]types.Candidate{},
	}
}

func (m *memStore) CreateUserProfile(_ context.Context, email, hash, role, company string) (*db.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	u := &db.UserProfile{
		ID: uuid.New(), Email: email, PasswordHash: hash, Role: role, CompanyName: company,
		TierID: config.FreeTierID, SubscriptionStatus: "active", AvailableCredits: 3, JobsRemaining: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserProfile(_ context.Context, id uuid.UUID) (*db.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserProfileByEmail(_ context.Context, email string) (*db.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	u, err := m.GetUserProfileByEmail(ctx, email)
	return u != nil, err
}

func (m *memStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].PasswordHash = hash
	return nil
}

func (m *memStore) UpdateUserRole(_ context.Context, id uuid.UUID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %w", db.ErrNotFound)
	}
	u.Role = role
	return nil
}

func (m *memStore) ListUserProfiles(_ context.Context, role string) ([]db.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.UserProfile
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memStore) ListTiers(context.Context) ([]types.Tier, error) {
	var out []types.Tier
	for _, t := range config.Tiers {
		out = append(out, types.Tier{ID: t.ID, Name: t.Name, MonthlyJobAllotment: t.MonthlyJobAllotment, MonthlyCandidateAllotment: t.MonthlyCandidateAllotment, IncludesCompanyEmails: t.IncludesCompanyEmails})
	}
	return out, nil
}

func (m *memStore) CreateJob(_ context.Context, clientID uuid.UUID, req *types.CreateJobRequest) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	j := &types.Job{
		ID: uuid.New(), ClientID: clientID, CompanyName: req.CompanyName, Title: req.Title,
		Description: req.Description, WorkArrangement: req.WorkArrangement, Location: req.Location,
		Skills: req.Skills, KeySellingPoints: req.KeySellingPoints, CandidatesRequested: req.CandidatesRequested,
		Status: types.JobStatusUnclaimed, CreatedAt: now, UpdatedAt: now,
	}
	m.jobs[j.ID] = j
	cp := *j
	return &cp, nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ListJobs(_ context.Context, f db.JobFilters) ([]types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Job
	for _, j := range m.jobs {
		if f.ClientID != uuid.Nil && j.ClientID != f.ClientID {
			continue
		}
		if f.SourcerID != uuid.Nil {
			mine := j.SourcerID != nil && *j.SourcerID == f.SourcerID
			if !mine && !(f.Open && j.Status == types.JobStatusUnclaimed) {
				continue
			}
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Title < out[k].Title })
	return out, nil
}

func (m *memStore) ClaimJob(_ context.Context, jobID, sourcerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %w", db.ErrNotFound)
	}
	if j.Status != types.JobStatusUnclaimed {
		return fmt.Errorf("claim: %w", db.ErrInvalidTransition)
	}
	j.SourcerID, j.Status = &sourcerID, types.JobStatusClaimed
	return nil
}

func (m *memStore) ReassignJob(_ context.Context, jobID, sourcerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %w", db.ErrNotFound)
	}
	if j.Status == types.JobStatusCompleted {
		return fmt.Errorf("reassign: %w", db.ErrInvalidTransition)
	}
	j.SourcerID, j.Status = &sourcerID, types.JobStatusClaimed
	return nil
}

func (m *memStore) CompleteJob(_ context.Context, jobID uuid.UUID, link, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %w", db.ErrNotFound)
	}
	if j.Status == types.JobStatusCompleted {
		return fmt.Errorf("complete: %w", db.ErrInvalidTransition)
	}
	now := time.Now().UTC()
	j.Status, j.CompletionLink, j.CompletionNote, j.CompletedAt = types.JobStatusCompleted, link, note, &now
	return nil
}

func (m *memStore) DeleteJob(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return fmt.Errorf("job %w", db.ErrNotFound)
	}
	delete(m.jobs, jobID)
	return nil
}

func (m *memStore) CountJobsSince(_ context.Context, clientID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.ClientID == clientID && !j.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListCandidates(_ context.Context, jobID uuid.UUID) ([]types.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Candidate
	for _, c := range m.candidates {
		if c.JobID == jobID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) DeleteCandidate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[id]; !ok {
		return fmt.Errorf("candidate %w", db.ErrNotFound)
	}
	delete(m.candidates, id)
	return nil
}

func (m *memStore) SourcerLeaderboard(context.Context, int) ([]types.LeaderboardEntry, error) {
	return []types.LeaderboardEntry{}, nil
}

func (m *memStore) ListCreditTransactions(_ context.Context, userID uuid.UUID, since time.Time) ([]types.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.CreditTransaction
	for _, t := range m.txns {
		if t.UserID == userID && !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeSubmitter records calls and returns canned results.
type fakeSubmitter struct {
	mu        sync.Mutex
	requests  []submission.Request
	result    *types.SubmissionResult
	commit    *types.CommitResult
	err       error
	events    []submission.ProgressEvent
	completed []uuid.UUID
}

func (f *fakeSubmitter) Submit(_ context.Context, req submission.Request) (*types.SubmissionResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	for _, e := range f.events {
		if req.OnProgress != nil {
			req.OnProgress(e)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &types.SubmissionResult{JobID: req.JobID, Mode: types.SubmitModeStage, Duplicates: []string{}, Accepted: []types.ScoredCandidate{}, Rejected: []types.ScoredCandidate{}, DraftSaved: true}, nil
}

func (f *fakeSubmitter) Complete(_ context.Context, _, jobID uuid.UUID) (*types.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, jobID)
	if f.err != nil {
		return nil, f.err
	}
	if f.commit != nil {
		return f.commit, nil
	}
	return &types.CommitResult{JobID: jobID}, nil
}

type testEnv struct {
	store    *memStore
	sub      *fakeSubmitter
	drafts   *draft.Cache
	jwt      *JWTService
	srv      *Server
	password string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	jwtSvc := NewJWTService(&config.JWTConfig{Secret: testJWTSecret, Issuer: "shortlist-test", ExpirationHours: 1})
	users := NewUserService(store, &config.PasswordConfig{BcryptCost: bcrypt.MinCost})
	env := &testEnv{
		store:    store,
		sub:      &fakeSubmitter{},
		drafts:   draft.NewCache(draft.NewMemoryStore(0), time.Hour),
		jwt:      jwtSvc,
		password: "correct-horse-battery",
	}
	env.srv = New(0, Deps{Store: store, Pipeline: env.sub, Drafts: env.drafts, Users: users, JWT: jwtSvc})
	return env
}

// addUser creates a user directly and returns it with a bearer token.
func (e *testEnv) addUser(t *testing.T, role string) (*db.UserProfile, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(e.password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := e.store.CreateUserProfile(context.Background(), role+"-"+uuid.NewString()[:8]+"@example.com", string(hash), role, "Acme")
	require.NoError(t, err)
	tok, err := e.jwt.GenerateToken(u.ID, role)
	require.NoError(t, err)
	return u, tok
}

func (e *testEnv) addJob(t *testing.T, clientID uuid.UUID, sourcer *uuid.UUID) *types.Job {
	t.Helper()
	j, err := e.store.CreateJob(context.Background(), clientID, &types.CreateJobRequest{
		CompanyName: "Acme", Title: "Backend Engineer", Description: "Build and run the ingestion services.",
		WorkArrangement: "Remote", CandidatesRequested: 5,
	})
	require.NoError(t, err)
	if sourcer != nil {
		require.NoError(t, e.store.ClaimJob(context.Background(), j.ID, *sourcer))
	}
	got, _ := e.store.GetJob(context.Background(), j.ID)
	return got
}
