package routes

import (
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

const (
	defaultRequestTimeout = 30 * time.Second
	loginLimiterEntries   = 10000
)

func requestTimeout(d deps.Deps) Middleware {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return middleware.Timeout(timeout)
}

func authenticated(d deps.Deps) Middleware {
	return mw.Authenticate(d.Accounts, d.Logger)
}

// loginRateLimit throttles credential guessing per client IP.
func loginRateLimit(d deps.Deps) Middleware {
	return mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.LoginBurst,
		RefillPerIPPerMin: d.LoginRefillPerMin,
		MaxEntries:        loginLimiterEntries,
		TrustProxy:        d.TrustProxy,
		Name:              "login",
		Logger:            d.Logger,
		Now:               d.TimeNow,
	})
}
