// internal/app/features/login/handler.go
package login

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{Users: users, SessionMgr: sessionMgr, Log: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// ServeLogin handles POST /login.
//
// Bad email and bad password get the same answer so the endpoint cannot be
// used to probe which addresses have accounts.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Invalid(w, "request body must be JSON with email and password")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		apierrors.Invalid(w, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			h.Log.Error("login: user lookup failed", zap.Error(err))
			apierrors.Internal(w)
			return
		}
		apierrors.Render(w, http.StatusUnauthorized, apierrors.CodeUnauthorized, "invalid email or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		apierrors.Render(w, http.StatusUnauthorized, apierrors.CodeUnauthorized, "invalid email or password")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, user.ID.Hex()); err != nil {
		h.Log.Error("login: session save failed", zap.Error(err))
		apierrors.Internal(w)
		return
	}

	resp := loginResponse{
		ID:    user.ID.Hex(),
		Name:  user.FullName,
		Email: user.Email,
		Role:  user.Role.String(),
	}
	if user.OrganizationID != nil {
		resp.OrganizationID = user.OrganizationID.Hex()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
