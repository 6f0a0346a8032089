package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shortlist/internal/types"
)

const candidateColumns = `id, job_id, submitted_by, first_name, last_name, linkedin_url, headline,
	location, experience, education, skills, summary, match_score, created_at`

func scanCandidate(row pgx.Row) (*types.Candidate, error) {
	var c types.Candidate
	var submittedBy *uuid.UUID
	var experience, education, skills []byte
	err := row.Scan(&c.ID, &c.JobID, &submittedBy, &c.FirstName, &c.LastName, &c.LinkedInURL,
		&c.Headline, &c.Location, &experience, &education, &skills, &c.Summary, &c.MatchScore, &c.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if submittedBy != nil {
		c.SubmittedBy = *submittedBy
	}
	c.Experience = unmarshalList[types.Experience](experience)
	c.Education = unmarshalList[types.Education](education)
	c.Skills = unmarshalList[string](skills)
	return &c, nil
}

// ListCandidateURLs returns the lowercased LinkedIn URLs already saved for a job.
func (db *DB) ListCandidateURLs(ctx context.Context, jobID uuid.UUID) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT lower(trim(linkedin_url)) FROM candidates WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan candidate URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ListCandidates returns a job's candidates, best match first.
func (db *DB) ListCandidates(ctx context.Context, jobID uuid.UUID) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE job_id = $1 ORDER BY match_score DESC, created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	candidates := []types.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// DeleteCandidate removes one candidate.
func (db *DB) DeleteCandidate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete candidate: candidate %w", ErrNotFound)
	}
	return nil
}

func insertCandidates(ctx context.Context, tx pgx.Tx, jobID, submittedBy uuid.UUID, candidates []types.ScoredCandidate) (int, error) {
	inserted := 0
	for _, c := range candidates {
		p := c.Profile
		experience, err := marshalList(p.Experience)
		if err != nil {
			return 0, fmt.Errorf("failed to encode experience: %w", err)
		}
		education, err := marshalList(p.Education)
		if err != nil {
			return 0, fmt.Errorf("failed to encode education: %w", err)
		}
		skills, err := marshalList(p.Skills)
		if err != nil {
			return 0, fmt.Errorf("failed to encode skills: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO candidates (job_id, submitted_by, first_name, last_name, linkedin_url, headline,
			                         location, experience, education, skills, summary, match_score, match_reasoning)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (job_id, lower(linkedin_url)) DO NOTHING`,
			jobID, submittedBy, p.FirstName, p.LastName, strings.TrimSpace(p.LinkedInURL), p.Headline,
			p.Location, experience, education, skills, p.Summary, c.Score, c.Reasoning,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert candidate %s: %w", p.LinkedInURL, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// SourcerLeaderboard ranks sourcers by saved candidates.
func (db *DB) SourcerLeaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := db.pool.Query(ctx,
		`SELECT u.id, u.email, COUNT(c.id),
		        (SELECT COUNT(*) FROM jobs j WHERE j.sourcer_id = u.id AND j.status = 'Completed')
		 FROM user_profiles u
		 LEFT JOIN candidates c ON c.submitted_by = u.id
		 WHERE u.role = 'sourcer'
		 GROUP BY u.id, u.email
		 ORDER BY COUNT(c.id) DESC, u.email
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []types.LeaderboardEntry{}
	for rows.Next() {
		var e types.LeaderboardEntry
		if err := rows.Scan(&e.SourcerID, &e.SourcerEmail, &e.CandidatesSubmitted, &e.JobsCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
