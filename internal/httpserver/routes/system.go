package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register(registerSystem) }

func registerSystem(r chi.Router, d deps.Deps) {
	r.With(requestTimeout(d)).Get("/", handlers.Root(d))
	r.With(requestTimeout(d)).Get("/health", handlers.Healthz(d))

	r.Group(func(r chi.Router) {
		r.Use(requestTimeout(d), mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		r.Get("/healthz", handlers.Healthz(d))
		r.Get("/readyz", handlers.Readyz(d))
		r.Get("/infra", handlers.Infra(d))
	})
}
