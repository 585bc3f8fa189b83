package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	// Public routes
	r.Get("/health", h.Health)
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	// Signed-in routes
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/me", h.Me)
		r.Post("/change-password", h.ChangePassword)

		r.Route("/api", func(r chi.Router) {
			r.Get("/protocols", h.ListProtocols)
			r.Post("/protocols", h.SaveProtocol)

			r.Get("/column-presets", h.ListColumnPresets)
			r.Post("/column-presets", h.UpsertColumnPreset)
			r.Delete("/column-presets", h.DeleteColumnPreset)

			r.Post("/ai/suggest", h.AISuggest)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Get("/admin/users", h.AdminListUsers)
			r.Post("/admin/promote", h.AdminPromote)
			r.Post("/admin/demote", h.AdminDemote)
			r.Post("/admin/approve", h.AdminApprove)
			r.Post("/admin/unapprove", h.AdminUnapprove)
			r.Post("/admin/delete-user", h.AdminDeleteUser)
			r.Post("/admin/reset-password", h.AdminResetPassword)
		})
	})

	return r
}
