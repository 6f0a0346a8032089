//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// MatchScoreThreshold is the minimum match score for a candidate to be accepted.
const MatchScoreThreshold = 60

// UnscoredReasoning is the reasoning attached to a candidate whose scoring failed.
const UnscoredReasoning = "Unable to calculate match score"

// Submission modes.
const (
	SubmitModeStage   = "stage"
	SubmitModePersist = "persist"
)

// Experience is one position on a scraped profile.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is one school entry on a scraped profile.
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Field  string `json:"field,omitempty"`
}

// ScrapedProfile holds the attributes returned by the scraping service for one URL.
type ScrapedProfile struct {
	LinkedInURL string       `json:"linkedin_url"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Headline    string       `json:"headline,omitempty"`
	Location    string       `json:"location,omitempty"`
	Experience  []Experience `json:"experience,omitempty"`
	Education   []Education  `json:"education,omitempty"`
	Skills      []string     `json:"skills,omitempty"`
	Summary     string       `json:"summary,omitempty"`
}

// FullName returns the display name of the profile.
func (p ScrapedProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ScoreResult is the scorer's verdict on one profile.
type ScoreResult struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// ScoredCandidate is a scraped profile with its verdict, staged under a temporary ID.
type ScoredCandidate struct {
	TempID    string         `json:"temp_id"`
	Profile   ScrapedProfile `json:"profile"`
	Score     int            `json:"score"`
	Reasoning string         `json:"reasoning"`
	ScoredAt  time.Time      `json:"scored_at"`
}

// Accepted reports whether the candidate meets the match threshold.
func (c ScoredCandidate) Accepted() bool {
	return c.Score >= MatchScoreThreshold
}

// SubmitCandidatesRequest is a batch of LinkedIn URLs for one job.
type SubmitCandidatesRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,required"`
	Mode string   `json:"mode,omitempty" validate:"omitempty,oneof=stage persist"`
}

// SubmissionResult reports what happened to each URL of a batch.
type SubmissionResult struct {
	JobID         uuid.UUID         `json:"job_id"`
	Mode          string            `json:"mode"`
	Duplicates    []string          `json:"duplicates"`
	Invalid       []string          `json:"invalid,omitempty"`
	Accepted      []ScoredCandidate `json:"accepted"`
	Rejected      []ScoredCandidate `json:"rejected"`
	FailedScrapes int               `json:"failed_scrapes"`
	FailedURLs    []string          `json:"failed_urls,omitempty"`
	DraftSaved    bool              `json:"draft_saved"`
	Commit        *CommitResult     `json:"commit,omitempty"`
}

// CommitResult reports the outcome of persisting accepted candidates.
type CommitResult struct {
	JobID            uuid.UUID `json:"job_id"`
	Committed        int       `json:"committed"`
	Deferred         int       `json:"deferred"`
	TotalCandidates  int       `json:"total_candidates"`
	JobCompleted     bool      `json:"job_completed"`
	CreditsDeducted  int       `json:"credits_deducted"`
	CreditsRemaining int       `json:"credits_remaining"`
	CreditError      string    `json:"credit_error,omitempty"`
}

// Candidate is the API view of a persisted candidate.
type Candidate struct {
	ID          uuid.UUID    `json:"id"`
	JobID       uuid.UUID    `json:"job_id"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	LinkedInURL string       `json:"linkedin_url"`
	Headline    string       `json:"headline,omitempty"`
	Location    string       `json:"location,omitempty"`
	Experience  []Experience `json:"experience"`
	Education   []Education  `json:"education"`
	Skills      []string     `json:"skills"`
	Summary     string       `json:"summary,omitempty"`
	MatchScore  int          `json:"match_score"`
	SubmittedBy uuid.UUID    `json:"submitted_by"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
