package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/shortlist/internal/types"
	"github.com/jonathan/shortlist/internal/usage"
)

func insertTransaction(ctx context.Context, tx pgx.Tx, userID uuid.UUID, jobID *uuid.UUID, kind string, amount int, desc string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO credit_transactions (user_id, job_id, kind, amount, description)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, jobID, kind, amount, desc)
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return nil
}

// CreditBalance returns a user's available credits.
func (db *DB) CreditBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx, `SELECT available_credits FROM user_profiles WHERE id = $1`, userID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to read credits: user %w", ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read credits: %w", err)
	}
	return n, nil
}

// DeductCredits takes up to n credits from the user, never going below zero,
// and records a deduction for the amount actually taken. The profile row is
// locked for the duration so concurrent commits cannot double-spend.
func (db *DB) DeductCredits(ctx context.Context, userID uuid.UUID, n int, jobID *uuid.UUID, desc string) (deducted, balance int, err error) {
	if n <= 0 {
		b, err := db.CreditBalance(ctx, userID)
		return 0, b, err
	}

	err = db.inTx(ctx, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx,
			`SELECT available_credits FROM user_profiles WHERE id = $1 FOR UPDATE`, userID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to deduct credits: user %w", ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock user credits: %w", err)
		}

		deducted = min(n, max(current, 0))
		balance = max(current-deducted, 0)
		if _, err := tx.Exec(ctx,
			`UPDATE user_profiles SET available_credits = $2, updated_at = NOW() WHERE id = $1`,
			userID, balance,
		); err != nil {
			return fmt.Errorf("failed to update credits: %w", err)
		}

		return insertTransaction(ctx, tx, userID, jobID, usage.TxDeduction, -deducted, desc)
	})
	if err != nil {
		return 0, 0, err
	}
	return deducted, balance, nil
}

// ListCreditTransactions returns a user's ledger entries since a time, newest first.
func (db *DB) ListCreditTransactions(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.CreditTransaction, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, job_id, kind, amount, description, created_at
		 FROM credit_transactions
		 WHERE user_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	defer rows.Close()

	txns := []types.CreditTransaction{}
	for rows.Next() {
		var t types.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.JobID, &t.Kind, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// UsageTransactions adapts ledger rows for usage.Compute.
func UsageTransactions(txns []types.CreditTransaction) []usage.Transaction {
	out := make([]usage.Transaction, 0, len(txns))
	for _, t := range txns {
		out = append(out, usage.Transaction{Kind: t.Kind, Amount: t.Amount, Description: t.Description, CreatedAt: t.CreatedAt})
	}
	return out
}
