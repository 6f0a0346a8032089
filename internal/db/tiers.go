package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/types"
)

const tierColumns = `id, name, monthly_job_allotment, monthly_candidate_allotment, includes_company_emails`

func scanTier(row pgx.Row) (*types.Tier, error) {
	var t types.Tier
	if err := row.Scan(&t.ID, &t.Name, &t.MonthlyJobAllotment, &t.MonthlyCandidateAllotment, &t.IncludesCompanyEmails); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTiers returns all tiers ordered by candidate allotment.
func (db *DB) ListTiers(ctx context.Context) ([]types.Tier, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+tierColumns+` FROM tiers ORDER BY monthly_candidate_allotment`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []types.Tier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tiers = append(tiers, *t)
	}
	return tiers, rows.Err()
}

// SeedTiers upserts the tier catalog.
func (db *DB) SeedTiers(ctx context.Context, defs []config.TierDefinition) error {
	batch := &pgx.Batch{}
	for _, d := range defs {
		batch.Queue(
			`INSERT INTO tiers (`+tierColumns+`) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
			     monthly_job_allotment = EXCLUDED.monthly_job_allotment,
			     monthly_candidate_allotment = EXCLUDED.monthly_candidate_allotment,
			     includes_company_emails = EXCLUDED.includes_company_emails`,
			d.ID, d.Name, d.MonthlyJobAllotment, d.MonthlyCandidateAllotment, d.IncludesCompanyEmails,
		)
	}

	if err := db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed tiers: %w", err)
	}
	return nil
}
