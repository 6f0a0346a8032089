package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/types"
	"github.com/jonathan/shortlist/internal/usage"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, caller(r))
}

// UsageSource is the ledger and job history usage is computed from.
type UsageSource interface {
	ListCreditTransactions(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.CreditTransaction, error)
	CountJobsSince(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error)
}

// ComputeUsage reports a user's allowances for the month containing now.
// Unknown tiers are treated as free.
func ComputeUsage(ctx context.Context, src UsageSource, p *types.UserProfile, now time.Time) (types.Usage, error) {
	tier, ok := config.LookupTier(p.TierID)
	if !ok {
		tier, _ = config.LookupTier(config.FreeTierID)
	}

	start := usage.PeriodStart(now)
	txns, err := src.ListCreditTransactions(ctx, p.ID, start)
	if err != nil {
		return types.Usage{}, err
	}
	jobs, err := src.CountJobsSince(ctx, p.ID, start)
	if err != nil {
		return types.Usage{}, err
	}
	return usage.Compute(p, tier, db.UsageTransactions(txns), jobs, now), nil
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	u, err := ComputeUsage(r.Context(), s.store, caller(r), s.now().UTC())
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, u)
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	switch role {
	case "", types.RoleClient, types.RoleSourcer, types.RoleAdmin:
	default:
		s.errorFrom(w, &ErrValidation{Field: "role", Message: "unknown role"})
		return
	}

	rows, err := s.store.ListUserProfiles(r.Context(), role)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	users := make([]*types.UserProfile, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].ToAPI())
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

func (s *Server) handleAdminPromote(w http.ResponseWriter, r *http.Request) {
	s.setRole(w, r, types.RoleAdmin)
}

// handleAdminDemote returns an admin to the sourcer role.
func (s *Server) handleAdminDemote(w http.ResponseWriter, r *http.Request) {
	s.setRole(w, r, types.RoleSourcer)
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request, role string) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if id == caller(r).ID {
		s.errorFrom(w, &ErrForbidden{Message: "admins cannot change their own role"})
		return
	}

	target, err := s.store.GetUserProfile(r.Context(), id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if target == nil {
		s.errorFrom(w, &ErrUserNotFound{UserID: id})
		return
	}
	if role == types.RoleSourcer && target.Role != types.RoleAdmin {
		s.errorFrom(w, &ErrValidation{Field: "id", Message: "user is not an admin"})
		return
	}

	if err := s.store.UpdateUserRole(r.Context(), id, role); err != nil {
		s.errorFrom(w, err)
		return
	}
	target.Role = role
	s.jsonResponse(w, http.StatusOK, target.ToAPI())
}
