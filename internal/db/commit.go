package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shortlist/internal/types"
)

// CommitOutcome reports what CommitCandidates did.
type CommitOutcome struct {
	Inserted     int
	Total        int
	Requested    int
	JobCompleted bool
}

// AutoCompleteNote is stamped on jobs that reach their requested count.
func AutoCompleteNote(total, requested int) string {
	return fmt.Sprintf("Auto-completed: %d of %d requested candidates submitted", total, requested)
}

// CommitCandidates saves candidates for a job and completes the job when the
// saved count reaches the requested count. The job row is locked so two
// concurrent commits see each other's inserts before deciding on completion.
func (db *DB) CommitCandidates(ctx context.Context, jobID, submittedBy uuid.UUID, candidates []types.ScoredCandidate) (*CommitOutcome, error) {
	out := &CommitOutcome{}
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status, candidates_requested FROM jobs WHERE id = $1 FOR UPDATE`, jobID,
		).Scan(&status, &out.Requested)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to commit candidates: job %w", ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock job: %w", err)
		}

		out.Inserted, err = insertCandidates(ctx, tx, jobID, submittedBy, candidates)
		if err != nil {
			return err
		}

		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM candidates WHERE job_id = $1`, jobID).Scan(&out.Total); err != nil {
			return fmt.Errorf("failed to count candidates: %w", err)
		}

		if status != types.JobStatusCompleted && out.Total >= out.Requested {
			if _, err := tx.Exec(ctx,
				`UPDATE jobs SET status = $2, completion_note = $3, completed_at = NOW(), updated_at = NOW()
				 WHERE id = $1`,
				jobID, types.JobStatusCompleted, AutoCompleteNote(out.Total, out.Requested),
			); err != nil {
				return fmt.Errorf("failed to complete job: %w", err)
			}
			out.JobCompleted = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
