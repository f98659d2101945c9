// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/members/{userID}", h.AddMember)
	r.Delete("/{id}/members/{userID}", h.RemoveMember)

	return r
}
