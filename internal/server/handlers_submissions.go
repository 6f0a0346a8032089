package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/shortlist/internal/csvimport"
	"github.com/jonathan/shortlist/internal/submission"
	"github.com/jonathan/shortlist/internal/types"
)

const uploadField = "file"

// handleSubmit runs a JSON batch of URLs through the pipeline.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadAssignedJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	var req types.SubmitCandidatesRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorFrom(w, err)
		return
	}

	result, err := s.pipeline.Submit(r.Context(), submission.Request{
		UserID: caller(r).ID,
		JobID:  job.ID,
		URLs:   req.URLs,
		Mode:   req.Mode,
	})
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleSubmitUpload accepts a CSV or XLSX file of profile URLs.
func (s *Server) handleSubmitUpload(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadAssignedJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	parsed, err := s.parseUpload(w, r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	result, err := s.pipeline.Submit(r.Context(), submission.Request{
		UserID:  caller(r).ID,
		JobID:   job.ID,
		URLs:    parsed.URLs,
		Mode:    r.FormValue("mode"),
		MaxURLs: s.importOpts.MaxRows,
	})
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"import": map[string]any{
			"rows":           parsed.Rows,
			"empty_rows":     parsed.EmptyRows,
			"header_skipped": parsed.HeaderSkipped,
			"urls":           len(parsed.URLs),
		},
		"result": result,
	})
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*csvimport.Result, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.importOpts.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(s.importOpts.MaxBytes); err != nil {
		return nil, &ErrValidation{Field: uploadField, Message: "invalid or oversized multipart upload"}
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, &ErrValidation{Field: uploadField, Message: "required"}
	}
	defer file.Close()

	parsed, err := csvimport.Parse(file, header.Filename, s.importOpts)
	if err != nil {
		if errors.Is(err, csvimport.ErrTooManyRows) || errors.Is(err, csvimport.ErrFileTooLarge) {
			return nil, err
		}
		return nil, &ErrValidation{Field: uploadField, Message: err.Error()}
	}
	return parsed, nil
}

// handleSubmitStream runs a JSON batch and streams progress events.
func (s *Server) handleSubmitStream(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadAssignedJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	var req types.SubmitCandidatesRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorFrom(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.pipeline.Submit(r.Context(), submission.Request{
		UserID: caller(r).ID,
		JobID:  job.ID,
		URLs:   req.URLs,
		Mode:   req.Mode,
		OnProgress: func(e submission.ProgressEvent) {
			if err := sse.WriteEvent("progress", e); err != nil {
				log.Printf("[server] progress write failed: %v", err)
			}
		},
	})
	if err != nil {
		status := HTTPStatus(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			log.Printf("[server] %v", err)
			msg = "internal server error"
		}
		sse.WriteError(status, msg)
		return
	}
	sse.WriteComplete(result)
}

// draftView is the staged state of a job for the caller.
type draftView struct {
	JobID         string                  `json:"job_id"`
	Accepted      []types.ScoredCandidate `json:"accepted"`
	Rejected      []types.ScoredCandidate `json:"rejected"`
	FailedScrapes int                     `json:"failed_scrapes"`
	SavedAt       *time.Time              `json:"saved_at,omitempty"`
	ExpiresAt     *time.Time              `json:"expires_at,omitempty"`
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadAssignedJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	d, err := s.drafts.Load(r.Context(), caller(r).ID, job.ID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	view := draftView{JobID: job.ID.String(), Accepted: []types.ScoredCandidate{}, Rejected: []types.ScoredCandidate{}}
	if d != nil {
		view.Accepted = nonNil(d.Accepted)
		view.Rejected = nonNil(d.Rejected)
		view.FailedScrapes = d.FailedScrapes
		expires := d.SavedAt.Add(s.drafts.TTL())
		view.SavedAt = &d.SavedAt
		view.ExpiresAt = &expires
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func nonNil(c []types.ScoredCandidate) []types.ScoredCandidate {
	if c == nil {
		return []types.ScoredCandidate{}
	}
	return c
}

func (s *Server) handleRemoveDraftCandidate(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadAssignedJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	removed, err := s.drafts.RemoveCandidate(r.Context(), caller(r).ID, job.ID, r.PathValue("temp_id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if !removed {
		s.errorFrom(w, &ErrNotFound{Resource: "staged candidate"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadAssignedJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := s.drafts.Clear(r.Context(), caller(r).ID, job.ID); err != nil {
		s.errorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteSubmission commits the caller's staged candidates.
func (s *Server) handleCompleteSubmission(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadAssignedJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	result, err := s.pipeline.Complete(r.Context(), caller(r).ID, job.ID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}
