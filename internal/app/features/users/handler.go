// internal/app/features/users/handler.go
package users

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/authz"
	"github.com/dalemusser/mentorhub/internal/app/system/sanitize"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RosterSync is the hook into the membership synchronizer: the handler
// kicks it after any write that can change default group membership.
type RosterSync interface {
	Kick()
}

type Handler struct {
	Users *userstore.Store
	Sync  RosterSync
	Log   *zap.Logger
}

func NewHandler(users *userstore.Store, sync RosterSync, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Sync: sync, Log: logger}
}

// List handles GET /users: the caller's organization roster (platform
// operators included, since they can appear in conversations).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID := authz.UserOrgID(r)
	if orgID.IsZero() && !authz.IsPlatformOperator(r) {
		apierrors.Forbidden(w, "you are not in an organization")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	roster, err := h.Users.ListRoster(ctx, orgID)
	if err != nil {
		h.Log.Error("users: roster list failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(roster)
}

type createRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create handles POST /users. Org admins create users in their own
// organization; only platform operators can create other operators.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !authz.IsStaff(r) {
		apierrors.Forbidden(w, "only admins can create users")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}

	name := sanitize.DisplayName(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := models.ParseRole(req.Role)
	switch {
	case name == "":
		apierrors.Invalid(w, "full_name is required")
		return
	case email == "":
		apierrors.Invalid(w, "email is required")
		return
	case len(req.Password) < 8:
		apierrors.Invalid(w, "password must be at least 8 characters")
		return
	case !role.Valid():
		apierrors.Invalid(w, "role must be mentee, mentor, org_admin, or platform_operator")
		return
	}
	if role == models.RolePlatformOperator && !authz.IsPlatformOperator(r) {
		apierrors.Forbidden(w, "only platform operators can create platform operators")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("users: hashing password failed", zap.Error(err))
		apierrors.Internal(w)
		return
	}

	u := models.User{
		FullName:     name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       "active",
	}
	if role != models.RolePlatformOperator {
		orgID := authz.UserOrgID(r)
		if orgID.IsZero() {
			apierrors.Invalid(w, "organization members must be created by an organization admin")
			return
		}
		u.OrganizationID = &orgID
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Users.Create(ctx, u)
	if err != nil {
		h.Log.Error("users: create failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	h.Sync.Kick()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

type roleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /users/{id}/role. The role change takes effect in the
// default groups on the synchronizer's next pass, which is kicked
// immediately.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	if !authz.IsStaff(r) {
		apierrors.Forbidden(w, "only admins can change roles")
		return
	}
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Invalid(w, "invalid user id")
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}
	role := models.ParseRole(req.Role)
	if !role.Valid() {
		apierrors.Invalid(w, "role must be mentee, mentor, org_admin, or platform_operator")
		return
	}
	if role == models.RolePlatformOperator && !authz.IsPlatformOperator(r) {
		apierrors.Forbidden(w, "only platform operators can grant operator access")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	target, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		apierrors.FromStore(w, err)
		return
	}
	if !authz.CanAccessOrg(r, target.OrgID()) {
		apierrors.Forbidden(w, "")
		return
	}

	if err := h.Users.UpdateRole(ctx, userID, role); err != nil {
		h.Log.Error("users: role update failed",
			zap.String("user_id", userID.Hex()), zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	h.Sync.Kick()
	w.WriteHeader(http.StatusNoContent)
}
