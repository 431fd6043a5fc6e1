package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register(registerSync) }

func registerSync(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(requestTimeout(d), mw.EnforceHost(d.AllowedHosts, d.Logger), authenticated(d))

		r.Post("/api/sync", handlers.Sync(d))
		r.Get("/api/bookmarks", handlers.Bookmarks(d))
		r.Get("/api/status", handlers.Status(d))
		r.Post("/api/import/homepage", handlers.ImportHomepage(d))
	})
}
