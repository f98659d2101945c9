// internal/app/features/organizations/handler.go
package organizations

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	orgstore "github.com/dalemusser/mentorhub/internal/app/store/organizations"
	"github.com/dalemusser/mentorhub/internal/app/system/authz"
	"github.com/dalemusser/mentorhub/internal/app/system/sanitize"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RosterSync is the membership synchronizer hook. Creating an organization
// kicks it so the new org gets its default groups without waiting for the
// next scheduled pass.
type RosterSync interface {
	Kick()
}

type Handler struct {
	Orgs *orgstore.Store
	Sync RosterSync
	Log  *zap.Logger
}

func NewHandler(orgs *orgstore.Store, sync RosterSync, logger *zap.Logger) *Handler {
	return &Handler{Orgs: orgs, Sync: sync, Log: logger}
}

// List handles GET /organizations. Platform operators only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !authz.IsPlatformOperator(r) {
		apierrors.Forbidden(w, "operator access required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Orgs.ListActive(ctx)
	if err != nil {
		h.Log.Error("organizations: list failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

type createRequest struct {
	Name     string `json:"name"`
	TimeZone string `json:"time_zone"`
}

// Create handles POST /organizations. Platform operators only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !authz.IsPlatformOperator(r) {
		apierrors.Forbidden(w, "operator access required")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}
	name := sanitize.DisplayName(req.Name)
	if name == "" {
		apierrors.Invalid(w, "name is required")
		return
	}
	tz := req.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		apierrors.Invalid(w, "time_zone must be a valid IANA zone name")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	org, err := h.Orgs.Create(ctx, models.Organization{
		Name:     name,
		TimeZone: tz,
	})
	if err != nil {
		h.Log.Error("organizations: create failed", zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	if h.Sync != nil {
		h.Sync.Kick()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(org)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PUT /organizations/{id}/status. Platform operators only.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !authz.IsPlatformOperator(r) {
		apierrors.Forbidden(w, "operator access required")
		return
	}
	orgID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Invalid(w, "invalid organization id")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}
	if req.Status != "active" && req.Status != "retired" {
		apierrors.Invalid(w, "status must be active or retired")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Orgs.SetStatus(ctx, orgID, req.Status); err != nil {
		h.Log.Error("organizations: status update failed",
			zap.String("org_id", orgID.Hex()), zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
