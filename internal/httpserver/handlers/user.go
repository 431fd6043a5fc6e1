package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/account"
	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type meResponse struct {
	ID         int64   `json:"id"`
	Email      string  `json:"email"`
	LastSyncAt *string `json:"last_sync_at"`
	CreatedAt  string  `json:"created_at"`
}

func Register(d deps.Deps) http.HandlerFunc {
	return credentialsHandler(d, d.Accounts.Register)
}

func Login(d deps.Deps) http.HandlerFunc {
	return credentialsHandler(d, d.Accounts.Login)
}

func credentialsHandler(d deps.Deps, fn func(ctx context.Context, email, password string) (account.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := respond.Decode(w, r, d.MaxBodyBytes, &req); err != nil {
			respond.DecodeError(w, err)
			return
		}

		sess, err := fn(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, tokenResponse{Token: sess.Token, Email: sess.User.Email})
	}
}

func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		u, err := d.Accounts.Me(r.Context(), p.UserID)
		if err != nil {
			writeError(d, w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, meResponse{
			ID:         u.ID,
			Email:      u.Email,
			LastSyncAt: isoTimePtr(u.LastSyncAt),
			CreatedAt:  isoTime(u.CreatedAt),
		})
	}
}
