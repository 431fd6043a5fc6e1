package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register(registerAnalyze) }

// Analyze calls wait on remote pages and the classifier, so they get their
// own, longer timeout.
func registerAnalyze(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.AnalyzeTimeout), mw.EnforceHost(d.AllowedHosts, d.Logger), authenticated(d))

		r.Post("/api/batch-analyze", handlers.BatchAnalyze(d))
		r.Post("/api/fetch-page", handlers.FetchPage(d))
	})
}
