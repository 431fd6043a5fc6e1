package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marksync/internal/account"
	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
)

// retryAfterSeconds is advertised on retryable storage failures.
const retryAfterSeconds = 1

// isoLayout renders instants as ISO-8601 UTC with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func isoTime(t time.Time) string { return t.UTC().Format(isoLayout) }

func isoTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoTime(*t)
	return &s
}

// writeError maps service errors to a status code. Anything unknown is a 500.
func writeError(d deps.Deps, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reconcile.ErrStorage):
		d.Logger.Error("storage failure",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		respond.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
	case errors.Is(err, account.ErrWeakPassword),
		errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, account.ErrEmailTaken),
		errors.Is(err, account.ErrInvalidStatus),
		errors.Is(err, account.ErrSelfDelete),
		errors.Is(err, reconcile.ErrInvalidUser):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		respond.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, account.ErrDisabled), errors.Is(err, account.ErrForbidden):
		respond.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, account.ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	default:
		d.Logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
