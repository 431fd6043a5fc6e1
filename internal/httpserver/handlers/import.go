package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
)

// ImportHomepage merges a Homepage bookmarks.yaml (or services.yaml with
// ?kind=services) into the caller's set. Imported entries never overwrite
// existing cloud bookmarks.
func ImportHomepage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := respond.ReadAll(w, r, d.MaxBodyBytes)
		if err != nil {
			respond.DecodeError(w, err)
			return
		}

		kind := homepage.Kind(r.URL.Query().Get("kind"))
		snapshot, err := homepage.Import(kind, data)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		mergeAndRespond(d, w, r, snapshot)
	}
}
