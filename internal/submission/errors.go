package submission

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when the job does not exist.
var ErrJobNotFound = errors.New("job not found")

// ErrJobClosed is returned when candidates are submitted to a completed job.
var ErrJobClosed = errors.New("job is already completed")

// ErrNothingToCommit is returned by Complete when the draft has no accepted candidates.
var ErrNothingToCommit = errors.New("no staged candidates to commit")

// ValidationError is a rejected batch. Nothing was scraped or stored.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ScrapeError is a failed scraping call. The whole batch was aborted.
type ScrapeError struct {
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("profile scraping failed: %v", e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}
