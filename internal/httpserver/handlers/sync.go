package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

type syncRequest struct {
	Bookmarks []domain.WireBookmark `json:"bookmarks"`
}

type syncResponse struct {
	Success    bool                  `json:"success"`
	Added      int                   `json:"added"`
	Updated    int                   `json:"updated"`
	Deleted    int                   `json:"deleted"`
	Conflicts  int                   `json:"conflicts"`
	Bookmarks  []domain.WireBookmark `json:"bookmarks"`
	LastSyncAt string                `json:"lastSyncAt"`
}

type statusResponse struct {
	LoggedIn      bool    `json:"logged_in"`
	Email         *string `json:"email"`
	LastSyncAt    *string `json:"last_sync_at"`
	BookmarkCount int     `json:"bookmark_count"`
	SyncCount     int     `json:"sync_count"`
}

// Sync merges the submitted snapshot into the caller's cloud set and
// answers with the merged set.
func Sync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req syncRequest
		if err := respond.Decode(w, r, d.MaxBodyBytes, &req); err != nil {
			respond.DecodeError(w, err)
			return
		}
		if req.Bookmarks == nil {
			respond.Error(w, http.StatusBadRequest, "bookmarks is required")
			return
		}

		mergeAndRespond(d, w, r, domain.ClientSnapshot(req.Bookmarks))
	}
}

// mergeAndRespond runs one merge for the authenticated principal and stamps
// its last sync time.
func mergeAndRespond(d deps.Deps, w http.ResponseWriter, r *http.Request, snapshot []domain.ClientBookmark) {
	if d.MaxSnapshotSize > 0 && len(snapshot) > d.MaxSnapshotSize {
		respond.Error(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("snapshot holds %d entries, at most %d are accepted", len(snapshot), d.MaxSnapshotSize))
		return
	}

	p := auth.FromContext(r.Context())
	res, err := d.Reconciler.Merge(r.Context(), p.UserID, snapshot)
	if err != nil {
		writeError(d, w, r, err)
		return
	}

	lastSync := stampLastSync(r.Context(), d, p.UserID)
	respond.JSON(w, http.StatusOK, syncResponse{
		Success:    true,
		Added:      res.Added,
		Updated:    res.Updated,
		Deleted:    res.Deleted,
		Conflicts:  res.Conflicts,
		Bookmarks:  res.Bookmarks(),
		LastSyncAt: isoTime(lastSync),
	})
}

// stampLastSync records the sync marker. The merge is already committed, so
// a failure here is logged and the response still succeeds.
func stampLastSync(ctx context.Context, d deps.Deps, userID int64) time.Time {
	at, err := d.Accounts.TouchLastSync(ctx, userID)
	if err != nil {
		d.Logger.Warn("failed to stamp last sync",
			logger.Int64("user_id", userID),
			logger.Error(err))
		return d.Now()
	}
	return at
}

// Bookmarks returns the caller's live set in the wire shape.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		records, err := d.Accounts.Bookmarks(r.Context(), p.UserID)
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, domain.WireSnapshot(records))
	}
}

// Status summarizes the caller's sync state.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		st, err := d.Accounts.Status(r.Context(), p.UserID)
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, statusResponse{
			LoggedIn:      true,
			Email:         &st.User.Email,
			LastSyncAt:    isoTimePtr(st.User.LastSyncAt),
			BookmarkCount: st.BookmarkCount,
			SyncCount:     st.SyncCount,
		})
	}
}
