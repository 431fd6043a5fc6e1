package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register(registerUser) }

func registerUser(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(requestTimeout(d), mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.With(loginRateLimit(d)).Post("/api/register", handlers.Register(d))
		r.With(loginRateLimit(d)).Post("/api/login", handlers.Login(d))
		r.With(authenticated(d)).Get("/api/me", handlers.Me(d))
	})
}
