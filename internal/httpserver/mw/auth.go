package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/account"
	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// Resolver turns a bearer token into a Principal. *account.Service implements it.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (auth.Principal, error)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the resolved Principal in the request context.
func Authenticate(resolver Resolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				respond.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			p, err := resolver.Resolve(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, account.ErrDisabled):
					respond.Error(w, http.StatusForbidden, err.Error())
				case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, account.ErrNotFound):
					w.Header().Set("WWW-Authenticate", "Bearer")
					respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				default:
					log.Error("resolve principal failed", logger.Error(err))
					respond.Error(w, http.StatusServiceUnavailable, "authentication unavailable")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin rejects principals without the admin role. It must run after
// Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).IsAdmin() {
			respond.Error(w, http.StatusForbidden, account.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
