// Package submission runs LinkedIn URL batches through dedup, scraping and
// scoring, then stages or commits the accepted candidates.
package submission

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/draft"
	"github.com/jonathan/shortlist/internal/linkedin"
	"github.com/jonathan/shortlist/internal/scoring"
	"github.com/jonathan/shortlist/internal/scrape"
	"github.com/jonathan/shortlist/internal/types"
)

// Store is the persistence the pipeline needs. *db.DB implements it.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListCandidateURLs(ctx context.Context, jobID uuid.UUID) ([]string, error)
	CommitCandidates(ctx context.Context, jobID, submittedBy uuid.UUID, candidates []types.ScoredCandidate) (*db.CommitOutcome, error)
	CreditBalance(ctx context.Context, userID uuid.UUID) (int, error)
	DeductCredits(ctx context.Context, userID uuid.UUID, n int, jobID *uuid.UUID, desc string) (int, int, error)
}

// Options tunes the pipeline.
type Options struct {
	MaxURLs          int
	ScoreConcurrency int
	OveragePolicy    string
}

// OptionsFromConfig maps service configuration to pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxURLs:          cfg.MaxURLsPerSubmission,
		ScoreConcurrency: cfg.ScoreConcurrency,
		OveragePolicy:    cfg.OveragePolicy,
	}
}

// Progress stages.
const (
	StageValidated = "validated"
	StageDeduped   = "deduplicated"
	StageScraping  = "scraping"
	StageScoring   = "scoring"
	StageStaged    = "staged"
	StageCommitted = "committed"
)

// ProgressEvent is emitted as a batch moves through the pipeline.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// ProgressCallback receives progress events. Calls are never concurrent.
type ProgressCallback func(event ProgressEvent)

// Request is one batch of URLs for one job.
type Request struct {
	UserID     uuid.UUID
	JobID      uuid.UUID
	URLs       []string
	Mode       string
	// MaxURLs overrides the pipeline's batch cap when > 0. File uploads
	// use the import row limit.
	MaxURLs    int
	OnProgress ProgressCallback
}

func (r *Request) emit(stage, msg string, done, total int) {
	if r.OnProgress != nil {
		r.OnProgress(ProgressEvent{Stage: stage, Message: msg, Done: done, Total: total})
	}
}

// Pipeline processes candidate submissions.
type Pipeline struct {
	store   Store
	scraper scrape.Scraper
	scorer  scoring.Scorer
	drafts  *draft.Cache
	opts    Options
}

// New creates a pipeline.
func New(store Store, scraper scrape.Scraper, scorer scoring.Scorer, drafts *draft.Cache, opts Options) *Pipeline {
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = config.DefaultMaxURLsPerSubmission
	}
	if opts.ScoreConcurrency <= 0 {
		opts.ScoreConcurrency = config.DefaultScoreConcurrency
	}
	if opts.OveragePolicy == "" {
		opts.OveragePolicy = config.OverageGrace
	}
	return &Pipeline{store: store, scraper: scraper, scorer: scorer, drafts: drafts, opts: opts}
}

// Submit validates, deduplicates, scrapes and scores a batch, then stages the
// verdicts in the draft (default) or commits accepted candidates at once.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*types.SubmissionResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = types.SubmitModeStage
	}
	if mode != types.SubmitModeStage && mode != types.SubmitModePersist {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown mode %q", mode)}
	}

	maxURLs := p.opts.MaxURLs
	if req.MaxURLs > 0 {
		maxURLs = req.MaxURLs
	}
	if len(req.URLs) > maxURLs {
		return nil, &ValidationError{Message: fmt.Sprintf("too many URLs: %d submitted, maximum is %d", len(req.URLs), maxURLs)}
	}
	cleaned := linkedin.CleanURLs(req.URLs)
	if len(cleaned.URLs) == 0 {
		return nil, &ValidationError{Message: "no valid LinkedIn profile URLs submitted"}
	}
	req.emit(StageValidated, fmt.Sprintf("%d valid URLs", len(cleaned.URLs)), 0, 0)

	job, err := p.loadOpenJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	result := &types.SubmissionResult{
		JobID:      job.ID,
		Mode:       mode,
		Duplicates: append([]string{}, cleaned.Repeats...),
		Invalid:    cleaned.Invalid,
		Accepted:   []types.ScoredCandidate{},
		Rejected:   []types.ScoredCandidate{},
	}

	unique, err := p.dedupe(ctx, req.UserID, job.ID, cleaned.URLs, result)
	if err != nil {
		return nil, err
	}
	req.emit(StageDeduped, fmt.Sprintf("%d new, %d duplicates", len(unique), len(result.Duplicates)), 0, 0)

	if len(unique) == 0 {
		result.DraftSaved = true
		return result, nil
	}

	req.emit(StageScraping, fmt.Sprintf("scraping %d profiles", len(unique)), 0, len(unique))
	scraped, err := p.scraper.Scrape(ctx, unique)
	if err != nil {
		log.Printf("[submission] job %s: scraping %d URLs failed: %v", job.ID, len(unique), err)
		return nil, &ScrapeError{Err: err}
	}
	result.FailedScrapes = len(scraped.FailedURLs)
	result.FailedURLs = scraped.FailedURLs

	total := len(scraped.Profiles)
	req.emit(StageScoring, fmt.Sprintf("scoring %d profiles", total), 0, total)
	verdicts := scoring.ScoreAll(ctx, p.scorer, job.Context(), scraped.Profiles, p.opts.ScoreConcurrency, func(done, total int) {
		req.emit(StageScoring, "scored", done, total)
	})
	accepted, rejected := scoring.Partition(verdicts)
	if accepted != nil {
		result.Accepted = accepted
	}
	if rejected != nil {
		result.Rejected = rejected
	}

	log.Printf("[submission] job %s: %d accepted, %d rejected, %d duplicates, %d failed scrapes",
		job.ID, len(result.Accepted), len(result.Rejected), len(result.Duplicates), result.FailedScrapes)

	if mode == types.SubmitModePersist {
		commit, err := p.commit(ctx, req.UserID, job, result.Accepted)
		if err != nil {
			return nil, err
		}
		result.Commit = commit
		result.DraftSaved = true
		req.emit(StageCommitted, fmt.Sprintf("%d candidates saved", commit.Committed), commit.Committed, len(result.Accepted))
		return result, nil
	}

	_, stats, saved, err := p.drafts.AddToDraft(ctx, req.UserID, job.ID, accepted, rejected, result.FailedScrapes)
	if err != nil {
		return nil, err
	}
	result.DraftSaved = saved
	req.emit(StageStaged, fmt.Sprintf("%d candidates staged for review", stats.Added), stats.Added, len(verdicts))
	return result, nil
}

func (p *Pipeline) loadOpenJob(ctx context.Context, jobID uuid.UUID) (*types.Job, error) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status == types.JobStatusCompleted {
		return nil, ErrJobClosed
	}
	return job, nil
}

// dedupe drops URLs already saved for the job or already in the user's draft.
func (p *Pipeline) dedupe(ctx context.Context, userID, jobID uuid.UUID, urls []string, result *types.SubmissionResult) ([]string, error) {
	saved, err := p.store.ListCandidateURLs(ctx, jobID)
	if err != nil {
		return nil, err
	}
	known := linkedin.NewURLSet(saved...)

	staged, err := p.drafts.StagedURLs(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	for u := range staged {
		known.Add(u)
	}

	var unique []string
	for _, u := range urls {
		if known.Has(u) {
			result.Duplicates = append(result.Duplicates, u)
			continue
		}
		unique = append(unique, u)
	}
	return unique, nil
}
