// Package scoring rates scraped candidates against a job.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/shortlist/internal/llm"
	"github.com/jonathan/shortlist/internal/prompts"
	"github.com/jonathan/shortlist/internal/schemas"
	"github.com/jonathan/shortlist/internal/types"
)

// Scorer rates one candidate for one job.
type Scorer interface {
	Score(ctx context.Context, job types.JobContext, profile types.ScrapedProfile) (types.ScoreResult, error)
}

// LLMScorer asks a language model for a match score.
type LLMScorer struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMScorer creates a scorer using the standard model tier.
func NewLLMScorer(client llm.Client) *LLMScorer {
	return &LLMScorer{client: client, tier: llm.TierStandard}
}

type scoreResponse struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Score implements Scorer.
func (s *LLMScorer) Score(ctx context.Context, job types.JobContext, profile types.ScrapedProfile) (types.ScoreResult, error) {
	prompt := BuildPrompt(job, profile)

	raw, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return types.ScoreResult{}, fmt.Errorf("failed to score candidate: %w", err)
	}

	if err := schemas.Validate(schemas.MatchScore, raw); err != nil {
		return types.ScoreResult{}, fmt.Errorf("invalid score response: %w", err)
	}

	var resp scoreResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return types.ScoreResult{}, fmt.Errorf("failed to parse score response: %w", err)
	}

	return types.ScoreResult{
		Score:     Clamp(int(math.Round(resp.Score))),
		Reasoning: strings.TrimSpace(resp.Reasoning),
	}, nil
}

// Clamp bounds a score to 0..100.
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// BuildPrompt fills the match-score template.
func BuildPrompt(job types.JobContext, p types.ScrapedProfile) string {
	var points strings.Builder
	for _, sp := range job.KeySellingPoints {
		points.WriteString("- " + sp + "\n")
	}

	var exp strings.Builder
	for _, e := range p.Experience {
		exp.WriteString("- " + e.Title)
		if e.Company != "" {
			exp.WriteString(" at " + e.Company)
		}
		if e.StartDate != "" || e.EndDate != "" {
			end := e.EndDate
			if end == "" {
				end = "present"
			}
			exp.WriteString(" (" + e.StartDate + " - " + end + ")")
		}
		if e.Description != "" {
			exp.WriteString(": " + e.Description)
		}
		exp.WriteString("\n")
	}

	var edu strings.Builder
	for _, e := range p.Education {
		edu.WriteString("- " + strings.TrimSpace(strings.Join([]string{e.Degree, e.Field}, " ")))
		if e.School != "" {
			edu.WriteString(", " + e.School)
		}
		edu.WriteString("\n")
	}

	return prompts.Format(prompts.MustGet("scoring.json", "match-score"), map[string]string{
		"Title":             job.Title,
		"Company":           job.CompanyName,
		"Seniority":         orNA(job.SeniorityLevel),
		"WorkArrangement":   orNA(job.WorkArrangement),
		"Location":          orNA(job.Location),
		"Skills":            orNA(strings.Join(job.Skills, ", ")),
		"SellingPoints":     orNA(points.String()),
		"Description":       job.Description,
		"Name":              p.FullName(),
		"Headline":          orNA(p.Headline),
		"CandidateLocation": orNA(p.Location),
		"CandidateSkills":   orNA(strings.Join(p.Skills, ", ")),
		"Experience":        orNA(exp.String()),
		"Education":         orNA(edu.String()),
		"Summary":           orNA(p.Summary),
	})
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}

// ScoreAll scores profiles concurrently and returns them in input order.
// A failed score never drops a candidate: it becomes score 0 with
// UnscoredReasoning, which the threshold then rejects.
func ScoreAll(ctx context.Context, scorer Scorer, job types.JobContext, profiles []types.ScrapedProfile, concurrency int, onScored func(done, total int)) []types.ScoredCandidate {
	out := make([]types.ScoredCandidate, len(profiles))
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	var mu sync.Mutex
	done := 0
	for i, p := range profiles {
		g.Go(func() error {
			res, err := scorer.Score(ctx, job, p)
			if err != nil {
				log.Printf("[scoring] %s: %v", p.LinkedInURL, err)
				res = types.ScoreResult{Score: 0, Reasoning: types.UnscoredReasoning}
			}
			out[i] = types.ScoredCandidate{
				TempID:    uuid.NewString(),
				Profile:   p,
				Score:     Clamp(res.Score),
				Reasoning: res.Reasoning,
				ScoredAt:  time.Now().UTC(),
			}
			if onScored != nil {
				mu.Lock()
				done++
				onScored(done, len(profiles))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Partition splits scored candidates at the acceptance threshold, keeping order.
func Partition(scored []types.ScoredCandidate) (accepted, rejected []types.ScoredCandidate) {
	for _, c := range scored {
		if c.Accepted() {
			accepted = append(accepted, c)
		} else {
			rejected = append(rejected, c)
		}
	}
	return accepted, rejected
}
