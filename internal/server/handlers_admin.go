package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/types"
)

func (s *Server) handleAdminAssignJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	var req types.AssignJobRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.errorFrom(w, err)
		return
	}

	sourcer, err := s.store.GetUserProfile(r.Context(), req.SourcerID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if sourcer == nil || sourcer.Role == types.RoleClient {
		s.errorFrom(w, &ErrValidation{Field: "sourcer_id", Message: "not a sourcer"})
		return
	}

	if err := s.store.ReassignJob(r.Context(), id, req.SourcerID); err != nil {
		s.errorFrom(w, err)
		return
	}
	s.respondJob(w, r)
}

func (s *Server) handleAdminCompleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	var req types.CompleteJobRequest
	if r.ContentLength != 0 {
		if err := s.decodeAndValidate(r, &req); err != nil {
			s.errorFrom(w, err)
			return
		}
	}
	if req.Note == "" {
		req.Note = "Completed by admin"
	}

	if err := s.store.CompleteJob(r.Context(), id, req.CompletionLink, req.Note); err != nil {
		s.errorFrom(w, err)
		return
	}
	log.Printf("[admin] %s completed job %s", caller(r).Email, id)
	s.respondJob(w, r)
}

func (s *Server) respondJob(w http.ResponseWriter, r *http.Request) {
	id, _ := pathUUID(r, "id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if job == nil {
		s.errorFrom(w, &ErrNotFound{Resource: "job"})
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleAdminDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := s.store.DeleteJob(r.Context(), id); err != nil {
		s.errorFrom(w, err)
		return
	}
	log.Printf("[admin] %s deleted job %s", caller(r).Email, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := s.store.DeleteCandidate(r.Context(), id); err != nil {
		s.errorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.errorFrom(w, &ErrValidation{Field: "limit", Message: "must be between 1 and 500"})
			return
		}
		limit = n
	}
	entries, err := s.store.SourcerLeaderboard(r.Context(), limit)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []any{
	"Job ID", "Company", "Title", "Status", "Work Arrangement", "Location",
	"Requested", "Submitted", "Sourcer ID", "Skills", "Created", "Completed", "Completion Link",
}

// handleAdminExportJobs writes every job (optionally filtered by status) as an XLSX sheet.
func (s *Server) handleAdminExportJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), db.JobFilters{Status: r.URL.Query().Get("status")})
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	f, err := BuildJobsWorkbook(jobs)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="jobs-%s.xlsx"`, s.now().UTC().Format("2006-01-02")))
	if _, err := f.WriteTo(w); err != nil {
		log.Printf("[admin] failed to write export: %v", err)
	}
}

// BuildJobsWorkbook renders jobs into a single-sheet workbook.
func BuildJobsWorkbook(jobs []types.Job) (*excelize.File, error) {
	const sheet = "Jobs"
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, j := range jobs {
		sourcer, completed := "", ""
		if j.SourcerID != nil {
			sourcer = j.SourcerID.String()
		}
		if j.CompletedAt != nil {
			completed = j.CompletedAt.UTC().Format("2006-01-02 15:04")
		}
		row := []any{
			j.ID.String(), j.CompanyName, j.Title, j.Status, j.WorkArrangement, j.Location,
			j.CandidatesRequested, j.CandidateCount, sourcer, strings.Join(j.Skills, ", "),
			j.CreatedAt.UTC().Format("2006-01-02 15:04"), completed, j.CompletionLink,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, max(len(jobs)+1, 2)), nil); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to add filter: %w", err)
	}
	return f, nil
}
