package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/account"
	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

type userListItem struct {
	ID            int64   `json:"id"`
	Email         string  `json:"email"`
	Status        string  `json:"status"`
	IsAdmin       bool    `json:"is_admin"`
	BookmarkCount int     `json:"bookmark_count"`
	LastSyncAt    *string `json:"last_sync_at"`
	CreatedAt     string  `json:"created_at"`
}

type adminBookmark struct {
	ID         int64  `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	FolderPath string `json:"folderPath"`
	CreatedAt  string `json:"created_at"`
}

type adminSync struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	Added     int    `json:"added"`
	Updated   int    `json:"updated"`
	Deleted   int    `json:"deleted"`
	Conflicts int    `json:"conflicts"`
	CreatedAt string `json:"created_at"`
}

type userDetailResponse struct {
	userListItem
	SyncCount   int             `json:"sync_count"`
	Bookmarks   []adminBookmark `json:"bookmarks"`
	RecentSyncs []adminSync     `json:"recent_syncs"`
}

type updateUserRequest struct {
	Status  *string `json:"status"`
	IsAdmin *bool   `json:"is_admin"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type refreshResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

func listItem(u domain.User, bookmarkCount int) userListItem {
	return userListItem{
		ID:            u.ID,
		Email:         u.Email,
		Status:        string(u.Status),
		IsAdmin:       u.IsAdmin,
		BookmarkCount: bookmarkCount,
		LastSyncAt:    isoTimePtr(u.LastSyncAt),
		CreatedAt:     isoTime(u.CreatedAt),
	}
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func AdminLogin(d deps.Deps) http.HandlerFunc {
	return credentialsHandler(d, d.Accounts.AdminLogin)
}

// AdminStats computes fresh global stats.
func AdminStats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Stats.Refresh(r.Context())
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, snap)
	}
}

// AdminRefreshStats asks the background refresher for a new snapshot
// without waiting for it.
func AdminRefreshStats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteIP := utils.ClientIP(r, d.TrustProxy)
		select {
		case d.StatsTrigger <- struct{}{}:
			d.Logger.Info("manual stats refresh triggered via endpoint",
				logger.String("remote_ip", remoteIP))
			respond.JSON(w, http.StatusAccepted, refreshResponse{Triggered: true, Message: "refresh triggered"})
		default:
			d.Logger.Warn("stats refresh already in progress",
				logger.String("remote_ip", remoteIP))
			respond.JSON(w, http.StatusTooManyRequests, refreshResponse{Message: "refresh already in progress, please wait"})
		}
	}
}

func AdminUsers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := d.Accounts.List(r.Context())
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		items := make([]userListItem, 0, len(users))
		for _, u := range users {
			items = append(items, listItem(u.User, u.BookmarkCount))
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

func AdminUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(w, r)
		if !ok {
			return
		}
		det, err := d.Accounts.Detail(r.Context(), id)
		if err != nil {
			writeError(d, w, r, err)
			return
		}

		resp := userDetailResponse{
			userListItem: listItem(det.User, det.BookmarkCount),
			SyncCount:    det.SyncCount,
			Bookmarks:    make([]adminBookmark, 0, len(det.Bookmarks)),
			RecentSyncs:  make([]adminSync, 0, len(det.RecentSyncs)),
		}
		for _, b := range det.Bookmarks {
			resp.Bookmarks = append(resp.Bookmarks, adminBookmark{
				ID:         b.ID,
				URL:        b.URL,
				Title:      b.Title,
				FolderPath: b.FolderPath,
				CreatedAt:  isoTime(b.CreatedAt),
			})
		}
		for _, e := range det.RecentSyncs {
			resp.RecentSyncs = append(resp.RecentSyncs, adminSync{
				ID:        e.ID,
				Action:    string(e.Action),
				Added:     e.Added,
				Updated:   e.Updated,
				Deleted:   e.Deleted,
				Conflicts: e.Conflicts,
				CreatedAt: isoTime(e.CreatedAt),
			})
		}
		respond.JSON(w, http.StatusOK, resp)
	}
}

func AdminUpdateUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(w, r)
		if !ok {
			return
		}
		var req updateUserRequest
		if err := respond.Decode(w, r, d.MaxBodyBytes, &req); err != nil {
			respond.DecodeError(w, err)
			return
		}

		upd := account.Update{IsAdmin: req.IsAdmin}
		if req.Status != nil && *req.Status != "" {
			st := domain.UserStatus(*req.Status)
			upd.Status = &st
		}
		if err := d.Accounts.Update(r.Context(), id, upd); err != nil {
			writeError(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, successResponse{Success: true})
	}
}

func AdminDeleteUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(w, r)
		if !ok {
			return
		}
		if err := d.Accounts.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
			writeError(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, successResponse{Success: true})
	}
}
