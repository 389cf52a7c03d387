package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/onexport/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(exp Exporter, cat index.Catalogue, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(exp, cat)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Export runs.
	r.Post("/exports", h.CreateExport)
	r.Get("/exports", h.ListExports)

	// Catalogue.
	r.Get("/pages", h.ListPages)
	r.Get("/pages/{id}", h.GetPage)
	r.Get("/sections", h.ListSections)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
