package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// EnforceHost rejects requests whose Host (port ignored, case-insensitive)
// matches none of allowedHosts. "*.example.com" matches any subdomain but
// not example.com itself. An empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	patterns := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			patterns = append(patterns, h)
		}
	}
	if len(patterns) == 0 {
		log.Debug("EnforceHost: no allowed hosts, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("EnforceHost: initialized", logger.Any("hosts", patterns))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := strings.ToLower(utils.ParseHostNoPort(r.Host))
			for _, pattern := range patterns {
				if matchHost(host, pattern) {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Debug("EnforceHost: rejected", logger.String("host", r.Host))
			respond.Error(w, http.StatusForbidden, "forbidden")
		})
	}
}

func matchHost(host, pattern string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
	}
	return host == pattern
}
