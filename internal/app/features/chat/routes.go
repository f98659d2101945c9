// internal/app/features/chat/routes.go
package chat

import (
	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/conversations", h.ListConversations)
	r.Get("/conversations/{id}/messages", h.History)

	r.Get("/requests", h.ListRequests)
	r.Post("/requests", h.CreateRequest)
	r.Post("/requests/{id}/respond", h.RespondRequest)

	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications/{id}/read", h.ReadNotification)

	r.Get("/ws", h.Socket)

	return r
}
