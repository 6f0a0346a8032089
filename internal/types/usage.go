//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Usage summarises a user's allowances for the current period.
type Usage struct {
	TierID                 string     `json:"tier_id"`
	TierName               string     `json:"tier_name"`
	FreeTier               bool       `json:"free_tier"`
	CandidateLimit         int        `json:"candidate_limit"`
	CandidatesUsed         int        `json:"candidates_used"`
	CandidatesRemaining    int        `json:"candidates_remaining"`
	JobsSubmittedThisMonth int        `json:"jobs_submitted_this_month"`
	MonthlyJobAllotment    int        `json:"monthly_job_allotment"`
	IncludesCompanyEmails  bool       `json:"includes_company_emails"`
	ResetDate              *time.Time `json:"reset_date,omitempty"`
}

// LeaderboardEntry ranks sourcers by accepted candidates.
type LeaderboardEntry struct {
	SourcerID           uuid.UUID `json:"sourcer_id"`
	SourcerEmail        string    `json:"sourcer_email"`
	CandidatesSubmitted int       `json:"candidates_submitted"`
	JobsCompleted       int       `json:"jobs_completed"`
}
