package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(requestTimeout(d), mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.With(loginRateLimit(d)).Post("/admin/login", handlers.AdminLogin(d))

		r.Group(func(r chi.Router) {
			r.Use(authenticated(d), mw.RequireAdmin)
			r.Get("/admin/stats", handlers.AdminStats(d))
			r.Post("/admin/stats/refresh", handlers.AdminRefreshStats(d))
			r.Get("/admin/users", handlers.AdminUsers(d))
			r.Get("/admin/user/{id}", handlers.AdminUser(d))
			r.Put("/admin/user/{id}", handlers.AdminUpdateUser(d))
			r.Delete("/admin/user/{id}", handlers.AdminDeleteUser(d))
		})
	})
}
