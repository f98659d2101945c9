// internal/app/features/users/import.go
package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	"github.com/dalemusser/mentorhub/internal/app/features/users/csvutil"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/authz"
	"github.com/dalemusser/mentorhub/internal/app/system/sanitize"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type importResponse struct {
	Created int                `json:"created"`
	Skipped int                `json:"skipped"`
	Errors  []csvutil.RowError `json:"errors,omitempty"`
}

// Import handles POST /users/import: a text/csv body of roster rows
// (full_name,email,role[,temp_password]) created into the caller's
// organization. Validation errors reject the whole file; rows whose email
// already exists are skipped, not treated as failures, so re-uploading a
// corrected file is safe.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if !authz.IsStaff(r) {
		apierrors.Forbidden(w, "only admins can import users")
		return
	}
	orgID := authz.UserOrgID(r)
	if orgID.IsZero() {
		apierrors.Forbidden(w, "imports need an organization; operators must act as an org admin")
		return
	}

	body := http.MaxBytesReader(w, r.Body, csvutil.MaxUploadSize)
	result, err := csvutil.ParseRosterCSV(body, csvutil.ParseOptions{MaxRows: csvutil.MaxRows})
	if err != nil {
		if errors.Is(err, csvutil.ErrTooManyRows) {
			apierrors.Invalid(w, "csv has too many rows")
			return
		}
		apierrors.Invalid(w, "could not read csv: "+err.Error())
		return
	}
	if result.HasErrors() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(importResponse{Errors: result.Errors})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	resp := importResponse{}
	for _, row := range result.Users {
		u := models.User{
			FullName:       sanitize.DisplayName(row.FullName),
			Email:          row.Email,
			Role:           row.Role,
			Status:         "active",
			OrganizationID: &orgID,
		}
		if row.TempPassword != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(row.TempPassword), bcrypt.DefaultCost)
			if err != nil {
				h.Log.Error("users: hashing import password failed", zap.Error(err))
				apierrors.Internal(w)
				return
			}
			u.PasswordHash = string(hash)
		}

		if _, err := h.Users.Create(ctx, u); err != nil {
			if errors.Is(err, userstore.ErrDuplicateEmail) {
				resp.Skipped++
				continue
			}
			h.Log.Error("users: import create failed",
				zap.String("email", row.Email), zap.Error(err))
			apierrors.FromStore(w, err)
			return
		}
		resp.Created++
	}

	if resp.Created > 0 {
		h.Sync.Kick()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
