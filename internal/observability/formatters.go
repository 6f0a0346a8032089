// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/shortlist/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// writeCandidates lists up to maxItemsToShow candidates under heading.
func writeCandidates(sb *strings.Builder, heading string, list []types.ScoredCandidate) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s (%d):\n", heading, len(list))
	count := min(len(list), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := list[i]
		name := c.Profile.FullName()
		if name == "" {
			name = c.Profile.LinkedInURL
		}
		fmt.Fprintf(sb, "  %3d  %s\n", c.Score, name)
		if c.Reasoning != "" {
			fmt.Fprintf(sb, "       %s\n", c.Reasoning)
		}
	}
	if len(list) > maxItemsToShow {
		fmt.Fprintf(sb, "  ... and %d more\n", len(list)-maxItemsToShow)
	}
	sb.WriteString("\n")
}

// PrintSubmission outputs a human-readable summary of a submission batch.
func (p *Printer) PrintSubmission(res *types.SubmissionResult) {
	if res == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Job:      %s\n", res.JobID)
	fmt.Fprintf(&sb, "Mode:     %s\n", res.Mode)
	fmt.Fprintf(&sb, "Duplicates: %d  Invalid: %d  Failed scrapes: %d\n\n",
		len(res.Duplicates), len(res.Invalid), res.FailedScrapes)

	writeCandidates(&sb, "Accepted", res.Accepted)
	writeCandidates(&sb, "Rejected", res.Rejected)

	if res.DraftSaved {
		sb.WriteString("Staged in draft; run complete to commit.\n")
	}
	p.printBox("SUBMISSION RESULT", strings.TrimSuffix(sb.String(), "\n"))

	if res.Commit != nil {
		p.PrintCommit(res.Commit)
	}
}

// PrintCommit outputs the outcome of persisting candidates.
func (p *Printer) PrintCommit(res *types.CommitResult) {
	if res == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Committed:  %d\n", res.Committed)
	if res.Deferred > 0 {
		fmt.Fprintf(&sb, "Deferred:   %d (kept in draft)\n", res.Deferred)
	}
	fmt.Fprintf(&sb, "On job:     %d\n", res.TotalCandidates)
	fmt.Fprintf(&sb, "Credits:    -%d, %d left\n", res.CreditsDeducted, res.CreditsRemaining)
	if res.JobCompleted {
		sb.WriteString("Job completed.\n")
	}
	if res.CreditError != "" {
		fmt.Fprintf(&sb, "Warning: %s\n", res.CreditError)
	}
	p.printBox("COMMIT", strings.TrimSuffix(sb.String(), "\n"))
}
