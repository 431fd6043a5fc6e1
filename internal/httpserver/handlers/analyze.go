package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/analyze"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// BatchAnalyze fetches and classifies every submitted url. Per-url failures
// are reported inside the body, the call itself still succeeds.
func BatchAnalyze(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyze.Request
		if err := respond.Decode(w, r, d.MaxBodyBytes, &req); err != nil {
			respond.DecodeError(w, err)
			return
		}

		limit := d.MaxAnalyzeURLs
		if limit <= 0 {
			limit = analyze.DefaultMaxURLs
		}
		if len(req.URLs) > limit {
			respond.Error(w, http.StatusBadRequest, fmt.Sprintf("at most %d urls per request", limit))
			return
		}

		rep := d.Analyzer.Analyze(r.Context(), req)
		respond.JSON(w, http.StatusOK, rep)
	}
}

// FetchPage returns the extract of the page named by ?url=.
func FetchPage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := strings.TrimSpace(r.URL.Query().Get("url"))
		if url == "" {
			respond.Error(w, http.StatusBadRequest, "url query parameter is required")
			return
		}

		page, err := d.Analyzer.FetchPage(r.Context(), url)
		if err != nil {
			d.Logger.Debug("fetch page failed", logger.String("url", url), logger.Error(err))
			if errors.Is(err, analyze.ErrUnsupportedURL) {
				respond.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			respond.Error(w, http.StatusBadGateway, err.Error())
			return
		}
		respond.JSON(w, http.StatusOK, page)
	}
}
