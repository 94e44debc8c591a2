package dropin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fotofair/fotofair-api/internal/middleware"
)

// Routes returns attendee-facing drop-in credit routes.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/consume", h.Consume)
	r.Get("/balance", h.Balance)
	r.Post("/purchase", h.Purchase)

	return r
}

// AdminRoutes returns ops-only routes (identity merge).
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Post("/normalize", h.Normalize)

	return r
}
