// internal/app/features/matches/handler.go
package matches

import (
	"context"
	"encoding/json"
	"net/http"

	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	matchstore "github.com/dalemusser/mentorhub/internal/app/store/matches"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/authz"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler manages mentor/mentee matches. An active match is what grants a
// pair direct-message eligibility, so writes here are admin-only.
type Handler struct {
	Matches *matchstore.Store
	Users   *userstore.Store
	Log     *zap.Logger
}

func NewHandler(matches *matchstore.Store, users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Matches: matches, Users: users, Log: logger}
}

// List handles GET /matches for the caller's organization.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID := authz.UserOrgID(r)
	if orgID.IsZero() {
		apierrors.Forbidden(w, "you are not in an organization")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Matches.ListByOrg(ctx, orgID)
	if err != nil {
		h.Log.Error("matches: list failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

type createRequest struct {
	MentorID string `json:"mentor_id"`
	MenteeID string `json:"mentee_id"`
}

// Create handles POST /matches. Both users must exist, belong to the
// caller's organization, and hold the roles their side of the match names.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !authz.IsStaff(r) {
		apierrors.Forbidden(w, "only admins can create matches")
		return
	}
	orgID := authz.UserOrgID(r)
	if orgID.IsZero() {
		apierrors.Forbidden(w, "you are not in an organization")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}
	mentorID, err := primitive.ObjectIDFromHex(req.MentorID)
	if err != nil {
		apierrors.Invalid(w, "mentor_id must be a valid id")
		return
	}
	menteeID, err := primitive.ObjectIDFromHex(req.MenteeID)
	if err != nil {
		apierrors.Invalid(w, "mentee_id must be a valid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	mentor, err := h.Users.GetByID(ctx, mentorID)
	if err != nil {
		apierrors.FromStore(w, err)
		return
	}
	mentee, err := h.Users.GetByID(ctx, menteeID)
	if err != nil {
		apierrors.FromStore(w, err)
		return
	}
	if mentor.OrgID() != orgID || mentee.OrgID() != orgID {
		apierrors.Forbidden(w, "both users must be in your organization")
		return
	}
	if mentor.Role != models.RoleMentor || mentee.Role != models.RoleMentee {
		apierrors.Invalid(w, "a match pairs one mentor with one mentee")
		return
	}

	m, err := h.Matches.Create(ctx, models.Match{
		OrganizationID: orgID,
		MentorID:       mentorID,
		MenteeID:       menteeID,
		Status:         models.MatchActive,
	})
	if err != nil {
		h.Log.Error("matches: create failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(m)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PUT /matches/{id}/status. Deactivating a match closes
// the pair's direct conversation unless an approved private-message request
// keeps it open.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !authz.IsStaff(r) {
		apierrors.Forbidden(w, "only admins can change match status")
		return
	}
	matchID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Invalid(w, "invalid match id")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}
	if req.Status != models.MatchActive && req.Status != models.MatchInactive {
		apierrors.Invalid(w, "status must be active or inactive")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Matches.GetByID(ctx, matchID)
	if err != nil {
		apierrors.FromStore(w, err)
		return
	}
	if !authz.CanAccessOrg(r, m.OrganizationID) {
		apierrors.Forbidden(w, "match is outside your organization")
		return
	}

	if err := h.Matches.SetStatus(ctx, matchID, req.Status); err != nil {
		h.Log.Error("matches: status update failed",
			zap.String("match_id", matchID.Hex()), zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
