package submission

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/types"
)

// Complete commits the accepted candidates staged in the user's draft for a
// job. Committed candidates leave the draft only after they are saved. Under
// the strict overage policy, candidates beyond the user's credit balance stay
// in the draft for a later commit.
func (p *Pipeline) Complete(ctx context.Context, userID, jobID uuid.UUID) (*types.CommitResult, error) {
	job, err := p.loadOpenJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	d, err := p.drafts.Load(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if d == nil || len(d.Accepted) == 0 {
		return nil, ErrNothingToCommit
	}

	toCommit := d.Accepted
	var deferred []types.ScoredCandidate
	if p.opts.OveragePolicy == config.OverageStrict {
		balance, err := p.store.CreditBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		if balance <= 0 {
			return nil, &ValidationError{Message: "no candidate credits remaining"}
		}
		if len(toCommit) > balance {
			toCommit, deferred = d.Accepted[:balance], d.Accepted[balance:]
		}
	}

	result, err := p.commit(ctx, userID, job, toCommit)
	if err != nil {
		return nil, err
	}
	result.Deferred = len(deferred)

	// Drop only what this call settled. Candidates staged while the commit
	// ran stay in the draft.
	settled := make([]string, 0, len(toCommit)+len(d.Rejected))
	for _, c := range toCommit {
		settled = append(settled, c.TempID)
	}
	if len(deferred) == 0 {
		for _, c := range d.Rejected {
			settled = append(settled, c.TempID)
		}
	}
	ok, err := p.drafts.Prune(ctx, userID, jobID, settled)
	if err != nil {
		log.Printf("[submission] job %s: %v", jobID, err)
	} else if !ok {
		log.Printf("[submission] job %s: failed to save draft after commit (%d deferred)", jobID, len(deferred))
	}
	return result, nil
}

// commit saves candidates, then charges credits for the rows actually
// inserted. A failed deduction does not undo the commit.
func (p *Pipeline) commit(ctx context.Context, userID uuid.UUID, job *types.Job, candidates []types.ScoredCandidate) (*types.CommitResult, error) {
	outcome, err := p.store.CommitCandidates(ctx, job.ID, userID, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to commit candidates: %w", err)
	}

	result := &types.CommitResult{
		JobID:           job.ID,
		Committed:       outcome.Inserted,
		TotalCandidates: outcome.Total,
		JobCompleted:    outcome.JobCompleted,
	}
	if outcome.JobCompleted {
		log.Printf("[submission] job %s auto-completed with %d/%d candidates", job.ID, outcome.Total, outcome.Requested)
	}

	if outcome.Inserted == 0 {
		balance, err := p.store.CreditBalance(ctx, userID)
		if err == nil {
			result.CreditsRemaining = balance
		}
		return result, nil
	}

	jobID := job.ID
	desc := fmt.Sprintf("%d candidates committed for %s", outcome.Inserted, job.Title)
	deducted, balance, err := p.store.DeductCredits(ctx, userID, outcome.Inserted, &jobID, desc)
	if err != nil {
		log.Printf("[submission] job %s: credit deduction of %d failed for user %s: %v", job.ID, outcome.Inserted, userID, err)
		result.CreditError = "credit deduction failed; candidates were saved"
		return result, nil
	}
	result.CreditsDeducted = deducted
	result.CreditsRemaining = balance
	if deducted < outcome.Inserted {
		log.Printf("[submission] user %s overran credits by %d on job %s", userID, outcome.Inserted-deducted, job.ID)
	}
	return result, nil
}
