package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
)

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

func Root(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, rootResponse{
			Message: "Bookmark Sync API",
			Version: d.Version,
		})
	}
}
