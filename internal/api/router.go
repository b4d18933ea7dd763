package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Compilation.
	r.Post("/compile", h.Compile)
	r.Post("/segment", h.Segment)

	// Documents CRUD.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{id}", h.GetDocument)
	r.Put("/documents/{id}", h.UpdateDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)

	// Live compile sessions.
	r.Post("/sessions", h.OpenSession)
	r.Get("/sessions/{id}", h.SessionState)
	r.Post("/sessions/{id}/edits", h.SessionEdit)
	r.Get("/sessions/{id}/artifact", h.SessionArtifact)
	r.Get("/sessions/{id}/artifacts/{artifactID}", h.SessionArtifactByID)
	r.Delete("/sessions/{id}", h.CloseSession)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
