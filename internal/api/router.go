package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/storysync/internal/storyservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *storyservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Local stories.
	r.Get("/stories", h.ListStories)
	r.Get("/stories/{id}", h.GetStory)

	// Synchronization runs.
	r.Post("/sync/push", h.Push)
	r.Post("/sync/pull", h.Pull)

	// Journal.
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}/events", h.RunEvents)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
