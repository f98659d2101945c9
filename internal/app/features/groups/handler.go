// internal/app/features/groups/handler.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"

	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	"github.com/dalemusser/mentorhub/internal/app/system/authz"
	"github.com/dalemusser/mentorhub/internal/app/system/sanitize"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler manages custom chat groups. The two default groups are owned by
// the membership synchronizer and cannot be created or edited here.
type Handler struct {
	Groups *groupstore.Store
	Log    *zap.Logger
}

func NewHandler(groups *groupstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Groups: groups, Log: logger}
}

// List handles GET /groups: every group in the caller's organization.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID := authz.UserOrgID(r)
	if orgID.IsZero() {
		apierrors.Forbidden(w, "you are not in an organization")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groups, err := h.Groups.ListByOrg(ctx, orgID)
	if err != nil {
		h.Log.Error("groups: list failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(groups)
}

type createRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// Create handles POST /groups. Staff only; the creator is always a member.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !authz.IsStaff(r) {
		apierrors.Forbidden(w, "only admins can create groups")
		return
	}
	_, _, userID, _ := authz.UserCtx(r)
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
	name := sanitize.DisplayName(req.Name)
	if name == "" {
		apierrors.Invalid(w, "group name is required")
		return
	}

	members := []primitive.ObjectID{userID}
	for _, raw := range req.MemberIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			apierrors.Invalid(w, "member_ids must be valid ids")
			return
		}
		members = append(members, id)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, err := h.Groups.Create(ctx, models.ChatGroup{
		OrganizationID: orgID,
		Name:           name,
		Kind:           models.GroupCustom,
		MemberIDs:      members,
		CreatedByID:    userID,
	}, nil)
	if err != nil {
		h.Log.Error("groups: create failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(g)
}

// AddMember handles POST /groups/{id}/members/{userID}. Staff only.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	h.editMember(w, r, h.Groups.AddMember)
}

// RemoveMember handles DELETE /groups/{id}/members/{userID}. Staff only.
// Removing a qualifying member from a default group does not stick: the
// synchronizer puts them back on its next pass.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.editMember(w, r, h.Groups.RemoveMember)
}

func (h *Handler) editMember(w http.ResponseWriter, r *http.Request, op func(context.Context, primitive.ObjectID, primitive.ObjectID) error) {
	if !authz.IsStaff(r) {
		apierrors.Forbidden(w, "only admins can manage group membership")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Invalid(w, "invalid group id")
		return
	}
	memberID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		apierrors.Invalid(w, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, err := h.Groups.GetByID(ctx, groupID)
	if err != nil {
		apierrors.FromStore(w, err)
		return
	}
	if !authz.CanAccessOrg(r, g.OrganizationID) {
		apierrors.Forbidden(w, "")
		return
	}

	if err := op(ctx, groupID, memberID); err != nil {
		h.Log.Error("groups: membership update failed",
			zap.String("group_id", groupID.Hex()), zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
