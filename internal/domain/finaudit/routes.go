package finaudit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fotofair/fotofair-api/internal/middleware"
)

// Routes returns the ops-only audit routes.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Get("/audit", h.Run)

	return r
}
