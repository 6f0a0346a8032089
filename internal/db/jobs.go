package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shortlist/internal/types"
)

const jobColumns = `j.id, j.client_id, j.sourcer_id, j.company_name, j.title, j.description,
	j.seniority_level, j.work_arrangement, j.location, j.salary_range_min, j.salary_range_max,
	j.skills, j.key_selling_points, j.candidates_requested, j.status, j.completion_link,
	j.completion_note, j.completed_at, j.created_at, j.updated_at,
	(SELECT COUNT(*) FROM candidates c WHERE c.job_id = j.id)`

func scanJob(row pgx.Row) (*types.Job, error) {
	var j types.Job
	var skills, points []byte
	err := row.Scan(&j.ID, &j.ClientID, &j.SourcerID, &j.CompanyName, &j.Title, &j.Description,
		&j.SeniorityLevel, &j.WorkArrangement, &j.Location, &j.SalaryRangeMin, &j.SalaryRangeMax,
		&skills, &points, &j.CandidatesRequested, &j.Status, &j.CompletionLink,
		&j.CompletionNote, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt, &j.CandidateCount)
	if err != nil {
		return nil, err
	}
	j.Skills = unmarshalList[string](skills)
	j.KeySellingPoints = unmarshalList[string](points)
	return &j, nil
}

// JobFilters narrows ListJobs. Zero values mean no filter.
type JobFilters struct {
	ClientID  uuid.UUID
	SourcerID uuid.UUID
	Status    string
	// Open includes unclaimed jobs alongside the sourcer's own.
	Open  bool
	Limit int
}

// CreateJob inserts an Unclaimed job owned by clientID.
func (db *DB) CreateJob(ctx context.Context, clientID uuid.UUID, req *types.CreateJobRequest) (*types.Job, error) {
	skills, err := marshalList(req.Skills)
	if err != nil {
		return nil, fmt.Errorf("failed to encode skills: %w", err)
	}
	points, err := marshalList(req.KeySellingPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selling points: %w", err)
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO jobs (client_id, company_name, title, description, seniority_level, work_arrangement,
		                   location, salary_range_min, salary_range_max, skills, key_selling_points,
		                   candidates_requested, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		clientID, req.CompanyName, req.Title, req.Description, req.SeniorityLevel, req.WorkArrangement,
		req.Location, req.SalaryRangeMin, req.SalaryRangeMax, skills, points,
		req.CandidatesRequested, types.JobStatusUnclaimed,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return db.GetJob(ctx, id)
}

// GetJob returns the job or nil when absent.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	j, err := scanJob(db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobs returns jobs matching filters, newest first.
func (db *DB) ListJobs(ctx context.Context, f JobFilters) ([]types.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs j WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ClientID != uuid.Nil {
		query += ` AND j.client_id = ` + arg(f.ClientID)
	}
	if f.SourcerID != uuid.Nil {
		if f.Open {
			query += ` AND (j.sourcer_id = ` + arg(f.SourcerID) + ` OR j.status = ` + arg(types.JobStatusUnclaimed) + `)`
		} else {
			query += ` AND j.sourcer_id = ` + arg(f.SourcerID)
		}
	}
	if f.Status != "" {
		query += ` AND j.status = ` + arg(f.Status)
	}
	query += ` ORDER BY j.created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// ClaimJob assigns an Unclaimed job to a sourcer.
func (db *DB) ClaimJob(ctx context.Context, jobID, sourcerID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET sourcer_id = $2, status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $4`,
		jobID, sourcerID, types.JobStatusClaimed, types.JobStatusUnclaimed)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.missingOrConflict(ctx, jobID, "claim")
	}
	return nil
}

// ReassignJob hands a job that is not completed to another sourcer.
func (db *DB) ReassignJob(ctx context.Context, jobID, sourcerID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET sourcer_id = $2, status = $3, updated_at = NOW()
		 WHERE id = $1 AND status <> $4`,
		jobID, sourcerID, types.JobStatusClaimed, types.JobStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to reassign job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.missingOrConflict(ctx, jobID, "reassign")
	}
	return nil
}

// CompleteJob marks a job Completed with an optional delivery link and note.
func (db *DB) CompleteJob(ctx context.Context, jobID uuid.UUID, link, note string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, completion_link = $3, completion_note = $4,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status <> $2`,
		jobID, types.JobStatusCompleted, link, note)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.missingOrConflict(ctx, jobID, "complete")
	}
	return nil
}

// DeleteJob removes a job and its candidates.
func (db *DB) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete job: job %w", ErrNotFound)
	}
	return nil
}

// CountJobsSince counts jobs a client created at or after since.
func (db *DB) CountJobsSince(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE client_id = $1 AND created_at >= $2`, clientID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

func (db *DB) missingOrConflict(ctx context.Context, jobID uuid.UUID, action string) error {
	job, err := db.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("failed to %s job: job %w", action, ErrNotFound)
	}
	return fmt.Errorf("failed to %s job in status %s: %w", action, job.Status, ErrInvalidTransition)
}
