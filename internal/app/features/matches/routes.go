// internal/app/features/matches/routes.go
package matches

import (
	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}/status", h.SetStatus)

	return r
}
