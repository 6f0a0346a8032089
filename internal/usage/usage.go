// Package usage derives a user's remaining candidate credits for the current period.
package usage

import (
	"strings"
	"time"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/types"
)

// Credit transaction kinds.
const (
	TxDeduction = "deduction"
	TxReset     = "reset"
)

// Transaction is the part of a credit transaction that usage needs.
type Transaction struct {
	Kind        string
	Amount      int
	Description string
	CreatedAt   time.Time
}

// PeriodStart returns the first instant of now's calendar month in UTC.
func PeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextReset returns the first day of the month after now, in UTC.
func NextReset(now time.Time) time.Time {
	return PeriodStart(now).AddDate(0, 1, 0)
}

// IsCandidateDeduction reports whether a transaction paid for candidates.
func IsCandidateDeduction(tx Transaction) bool {
	return tx.Kind == TxDeduction && strings.Contains(strings.ToLower(tx.Description), "candidate")
}

// Compute summarises usage. Free tiers draw on a one-time pool stored on the
// profile; paid tiers sum this month's candidate deductions against the allotment.
func Compute(profile *types.UserProfile, tier config.TierDefinition, txns []Transaction, jobsThisMonth int, now time.Time) types.Usage {
	u := types.Usage{
		TierID:                 tier.ID,
		TierName:               tier.Name,
		FreeTier:               config.IsFreeTier(tier.ID),
		CandidateLimit:         tier.MonthlyCandidateAllotment,
		JobsSubmittedThisMonth: jobsThisMonth,
		MonthlyJobAllotment:    tier.MonthlyJobAllotment,
		IncludesCompanyEmails:  tier.IncludesCompanyEmails,
	}

	if u.FreeTier {
		remaining := max(0, profile.AvailableCredits)
		u.CandidatesRemaining = remaining
		u.CandidatesUsed = max(0, u.CandidateLimit-remaining)
		return u
	}

	start := PeriodStart(now)
	end := NextReset(now)
	used := 0
	for _, tx := range txns {
		if !IsCandidateDeduction(tx) {
			continue
		}
		at := tx.CreatedAt.UTC()
		if at.Before(start) || !at.Before(end) {
			continue
		}
		used += abs(tx.Amount)
	}

	u.CandidatesUsed = used
	u.CandidatesRemaining = max(0, u.CandidateLimit-used)
	reset := end
	u.ResetDate = &reset
	return u
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
