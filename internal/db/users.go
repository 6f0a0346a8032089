package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/types"
	"github.com/jonathan/shortlist/internal/usage"
)

// UserProfile is a user_profiles row.
type UserProfile struct {
	ID                 uuid.UUID
	Email              string
	PasswordHash       string
	Role               string
	CompanyName        string
	TierID             string
	SubscriptionStatus string
	StripeCustomerID   *string
	AvailableCredits   int
	JobsRemaining      int
	CreditsResetDate   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ToAPI converts the row to its API view.
func (u *UserProfile) ToAPI() *types.UserProfile {
	return &types.UserProfile{
		ID:                 u.ID,
		Email:              u.Email,
		Role:               u.Role,
		CompanyName:        u.CompanyName,
		TierID:             u.TierID,
		SubscriptionStatus: u.SubscriptionStatus,
		AvailableCredits:   u.AvailableCredits,
		JobsRemaining:      u.JobsRemaining,
		CreditsResetDate:   u.CreditsResetDate,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

const userColumns = `id, email, password_hash, role, company_name, tier_id, subscription_status,
	stripe_customer_id, available_credits, jobs_remaining, credits_reset_date, created_at, updated_at`

func scanUser(row pgx.Row) (*UserProfile, error) {
	var u UserProfile
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CompanyName, &u.TierID,
		&u.SubscriptionStatus, &u.StripeCustomerID, &u.AvailableCredits, &u.JobsRemaining,
		&u.CreditsResetDate, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) getUserWhere(ctx context.Context, where string, arg any) (*UserProfile, error) {
	u, err := scanUser(db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM user_profiles WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return u, nil
}

// CreateUserProfile inserts a user on the free tier with the free credit pool.
func (db *DB) CreateUserProfile(ctx context.Context, email, passwordHash, role, companyName string) (*UserProfile, error) {
	free, _ := config.LookupTier(config.FreeTierID)
	u, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO user_profiles (email, password_hash, role, company_name, tier_id, available_credits, jobs_remaining)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+userColumns,
		strings.ToLower(strings.TrimSpace(email)), passwordHash, role, companyName,
		free.ID, free.MonthlyCandidateAllotment, free.MonthlyJobAllotment,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}
	return u, nil
}

// GetUserProfile returns the user or nil when absent.
func (db *DB) GetUserProfile(ctx context.Context, id uuid.UUID) (*UserProfile, error) {
	return db.getUserWhere(ctx, "id = $1", id)
}

// GetUserProfileByEmail returns the user or nil when absent. Matching is case-insensitive.
func (db *DB) GetUserProfileByEmail(ctx context.Context, email string) (*UserProfile, error) {
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	return db.getUserWhere(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByStripeCustomer returns the user linked to a payment customer, or nil.
func (db *DB) GetUserByStripeCustomer(ctx context.Context, customerID string) (*UserProfile, error) {
	return db.getUserWhere(ctx, "stripe_customer_id = $1", customerID)
}

// CheckEmailExists reports whether an account uses email.
func (db *DB) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_profiles WHERE email = $1)`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (db *DB) execUser(ctx context.Context, what, sql string, args ...any) error {
	tag, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to %s: user %w", what, ErrNotFound)
	}
	return nil
}

// UpdatePassword stores a new password hash.
func (db *DB) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return db.execUser(ctx, "update password",
		`UPDATE user_profiles SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// UpdateUserRole changes a user's role.
func (db *DB) UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error {
	return db.execUser(ctx, "update role",
		`UPDATE user_profiles SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

// SetStripeCustomer links a payment customer to the user.
func (db *DB) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	return db.execUser(ctx, "set payment customer",
		`UPDATE user_profiles SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`, id, customerID)
}

// DeleteUserProfile removes a user and, by cascade, their jobs and ledger.
func (db *DB) DeleteUserProfile(ctx context.Context, id uuid.UUID) error {
	return db.execUser(ctx, "delete user", `DELETE FROM user_profiles WHERE id = $1`, id)
}

// ListUserProfiles lists users, optionally filtered by role, newest first.
func (db *DB) ListUserProfiles(ctx context.Context, role string) ([]UserProfile, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM user_profiles
		 WHERE ($1 = '' OR role = $1)
		 ORDER BY created_at DESC`, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserTier moves a user to a tier and records the credit reset.
// Paid tiers get their full monthly allotment and a reset date; moving to
// the free tier never raises the balance above the free pool.
func (db *DB) UpdateUserTier(ctx context.Context, id uuid.UUID, tierID, status string, now time.Time) error {
	tier, ok := config.LookupTier(tierID)
	if !ok {
		return fmt.Errorf("failed to update tier: unknown tier %q", tierID)
	}

	return db.inTx(ctx, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx,
			`SELECT available_credits FROM user_profiles WHERE id = $1 FOR UPDATE`, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to update tier: user %w", ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		credits := tier.MonthlyCandidateAllotment
		var resetDate *time.Time
		if config.IsFreeTier(tier.ID) {
			credits = min(current, tier.MonthlyCandidateAllotment)
		} else {
			r := usage.NextReset(now)
			resetDate = &r
		}

		if _, err := tx.Exec(ctx,
			`UPDATE user_profiles
			 SET tier_id = $2, subscription_status = $3, available_credits = $4,
			     jobs_remaining = $5, credits_reset_date = $6, updated_at = NOW()
			 WHERE id = $1`,
			id, tier.ID, status, credits, tier.MonthlyJobAllotment, resetDate,
		); err != nil {
			return fmt.Errorf("failed to update tier: %w", err)
		}

		if credits != current {
			if err := insertTransaction(ctx, tx, id, nil, usage.TxReset, credits-current,
				fmt.Sprintf("Credits reset for %s tier", tier.Name)); err != nil {
				return err
			}
		}
		return nil
	})
}
