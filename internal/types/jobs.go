//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Job statuses. Transitions run Unclaimed -> Claimed -> Completed.
const (
	JobStatusUnclaimed = "Unclaimed"
	JobStatusClaimed   = "Claimed"
	JobStatusCompleted = "Completed"
)

// CreateJobRequest is the job intake form.
type CreateJobRequest struct {
	CompanyName         string   `json:"company_name" validate:"required,max=200"`
	Title               string   `json:"title" validate:"required,max=200"`
	Description         string   `json:"description" validate:"required,min=20"`
	SeniorityLevel      string   `json:"seniority_level,omitempty" validate:"omitempty,oneof=Entry Mid Senior Lead Principal Executive"`
	WorkArrangement     string   `json:"work_arrangement" validate:"required,oneof=Remote Hybrid On-site"`
	Location            string   `json:"location,omitempty" validate:"max=200"`
	SalaryRangeMin      int      `json:"salary_range_min,omitempty" validate:"gte=0"`
	SalaryRangeMax      int      `json:"salary_range_max,omitempty" validate:"omitempty,gtefield=SalaryRangeMin"`
	Skills              []string `json:"skills,omitempty" validate:"max=30,dive,required,max=100"`
	KeySellingPoints    []string `json:"key_selling_points,omitempty" validate:"max=10,dive,required,max=300"`
	CandidatesRequested int      `json:"candidates_requested" validate:"required,min=1,max=100"`
}

// Validate validates the CreateJobRequest using the validator.
func (r *CreateJobRequest) Validate() error {
	return validator.New().Struct(r)
}

// AssignJobRequest is an admin reassignment of a job to a sourcer.
type AssignJobRequest struct {
	SourcerID uuid.UUID `json:"sourcer_id" validate:"required"`
}

// CompleteJobRequest is an admin force-completion.
type CompleteJobRequest struct {
	CompletionLink string `json:"completion_link,omitempty" validate:"omitempty,url"`
	Note           string `json:"note,omitempty" validate:"max=500"`
}

// JobContext is the part of a job the scorer sees.
type JobContext struct {
	Title            string
	CompanyName      string
	Description      string
	SeniorityLevel   string
	WorkArrangement  string
	Location         string
	Skills           []string
	KeySellingPoints []string
}

// Job is the API view of a requisition.
type Job struct {
	ID                  uuid.UUID  `json:"id"`
	ClientID            uuid.UUID  `json:"client_id"`
	CompanyName         string     `json:"company_name"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	SeniorityLevel      string     `json:"seniority_level,omitempty"`
	WorkArrangement     string     `json:"work_arrangement"`
	Location            string     `json:"location,omitempty"`
	SalaryRangeMin      int        `json:"salary_range_min,omitempty"`
	SalaryRangeMax      int        `json:"salary_range_max,omitempty"`
	Skills              []string   `json:"skills"`
	KeySellingPoints    []string   `json:"key_selling_points"`
	CandidatesRequested int        `json:"candidates_requested"`
	CandidateCount      int        `json:"candidate_count"`
	Status              string     `json:"status"`
	SourcerID           *uuid.UUID `json:"sourcer_id,omitempty"`
	CompletionLink      string     `json:"completion_link,omitempty"`
	CompletionNote      string     `json:"completion_note,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// Context returns the fields the scorer uses.
func (j *Job) Context() JobContext {
	return JobContext{
		Title:            j.Title,
		CompanyName:      j.CompanyName,
		Description:      j.Description,
		SeniorityLevel:   j.SeniorityLevel,
		WorkArrangement:  j.WorkArrangement,
		Location:         j.Location,
		Skills:           j.Skills,
		KeySellingPoints: j.KeySellingPoints,
	}
}

// Tier is the API view of a subscription tier.
type Tier struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	MonthlyJobAllotment       int    `json:"monthly_job_allotment"`
	MonthlyCandidateAllotment int    `json:"monthly_candidate_allotment"`
	IncludesCompanyEmails     bool   `json:"includes_company_emails"`
}

// CreditTransaction is one entry of a user's credit ledger.
type CreditTransaction struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	JobID       *uuid.UUID `json:"job_id,omitempty"`
	Kind        string     `json:"kind"`
	Amount      int        `json:"amount"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}
