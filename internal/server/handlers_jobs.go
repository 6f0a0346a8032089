package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/server/middleware"
	"github.com/jonathan/shortlist/internal/types"
)

// caller returns the profile RequireRole loaded.
func caller(r *http.Request) *types.UserProfile {
	p, _ := middleware.GetProfile(r)
	return p
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: name, Message: "must be a UUID"}
	}
	return id, nil
}

// canView reports whether the caller may see a job and its candidates.
func canView(job *types.Job, p *types.UserProfile) bool {
	switch p.Role {
	case types.RoleAdmin:
		return true
	case types.RoleClient:
		return job.ClientID == p.ID
	case types.RoleSourcer:
		return job.Status == types.JobStatusUnclaimed || (job.SourcerID != nil && *job.SourcerID == p.ID)
	}
	return false
}

// loadJob fetches a job the caller may see. Jobs the caller may not see are
// reported as missing.
func (s *Server) loadJob(ctx context.Context, r *http.Request) (*types.Job, error) {
	id, err := pathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil || !canView(job, caller(r)) {
		return nil, &ErrNotFound{Resource: "job"}
	}
	return job, nil
}

// loadAssignedJob fetches a job the caller may submit candidates to.
func (s *Server) loadAssignedJob(ctx context.Context, r *http.Request) (*types.Job, error) {
	job, err := s.loadJob(ctx, r)
	if err != nil {
		return nil, err
	}
	p := caller(r)
	if p.Role == types.RoleAdmin {
		return job, nil
	}
	if job.SourcerID == nil || *job.SourcerID != p.ID {
		return nil, &ErrForbidden{Message: "claim the job before submitting candidates"}
	}
	return job, nil
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req types.CreateJobRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorFrom(w, err)
		return
	}

	job, err := s.store.CreateJob(r.Context(), caller(r).ID, &req)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	f := db.JobFilters{Status: r.URL.Query().Get("status")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorFrom(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		f.Limit = n
	}

	switch p.Role {
	case types.RoleClient:
		f.ClientID = p.ID
	case types.RoleSourcer:
		f.SourcerID = p.ID
		f.Open = true
	}

	jobs, err := s.store.ListJobs(r.Context(), f)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if jobs == nil {
		jobs = []types.Job{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleClaimJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := s.store.ClaimJob(r.Context(), id, caller(r).ID); err != nil {
		s.errorFrom(w, err)
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	job, err := s.loadJob(r.Context(), r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if p := caller(r); p.Role == types.RoleSourcer && (job.SourcerID == nil || *job.SourcerID != p.ID) {
		s.errorFrom(w, &ErrNotFound{Resource: "job"})
		return
	}

	candidates, err := s.store.ListCandidates(r.Context(), job.ID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job_id":               job.ID,
		"candidates":           candidates,
		"count":                len(candidates),
		"candidates_requested": job.CandidatesRequested,
	})
}
