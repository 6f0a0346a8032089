package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/submission"
	"github.com/jonathan/shortlist/internal/types"
)

// UserStore is the user persistence behind UserService.
type UserStore interface {
	CreateUserProfile(ctx context.Context, email, passwordHash, role, companyName string) (*db.UserProfile, error)
	GetUserProfile(ctx context.Context, id uuid.UUID) (*db.UserProfile, error)
	GetUserProfileByEmail(ctx context.Context, email string) (*db.UserProfile, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// Store is everything the handlers read and write. *db.DB implements it.
type Store interface {
	UserStore
	UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error
	ListUserProfiles(ctx context.Context, role string) ([]db.UserProfile, error)

	ListTiers(ctx context.Context) ([]types.Tier, error)

	CreateJob(ctx context.Context, clientID uuid.UUID, req *types.CreateJobRequest) (*types.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListJobs(ctx context.Context, f db.JobFilters) ([]types.Job, error)
	ClaimJob(ctx context.Context, jobID, sourcerID uuid.UUID) error
	ReassignJob(ctx context.Context, jobID, sourcerID uuid.UUID) error
	CompleteJob(ctx context.Context, jobID uuid.UUID, link, note string) error
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
	CountJobsSince(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error)

	ListCandidates(ctx context.Context, jobID uuid.UUID) ([]types.Candidate, error)
	DeleteCandidate(ctx context.Context, id uuid.UUID) error
	SourcerLeaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)

	ListCreditTransactions(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.CreditTransaction, error)
}

// Submitter runs candidate batches. *submission.Pipeline implements it.
type Submitter interface {
	Submit(ctx context.Context, req submission.Request) (*types.SubmissionResult, error)
	Complete(ctx context.Context, userID, jobID uuid.UUID) (*types.CommitResult, error)
}

var (
	_ Store     = (*db.DB)(nil)
	_ Submitter = (*submission.Pipeline)(nil)
)
