// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, SessionMgr: sessionMgr}
}

// ServeLogout handles POST /logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("logout: clearing session failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
