package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int // sweep idle buckets early once this many IPs are tracked
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool // resolve IP from proxy headers when true

	Name   string           // logged on throttle, e.g. "login"
	Logger logger.Logger    // optional
	Now    func() time.Time // defaults to time.Now
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiter keeps one token bucket per client IP.
type limiter struct {
	cfg       RateLimitConfig
	every     rate.Limit
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerIPPerMin = max(cfg.RefillPerIPPerMin, 1)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &limiter{
		cfg:       cfg,
		every:     rate.Limit(float64(cfg.RefillPerIPPerMin) / 60.0),
		visitors:  make(map[string]*visitor, 1024),
		lastSweep: cfg.Now(),
	}
}

func (l *limiter) visitor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.visitors) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}
	v := l.visitors[key]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(l.every, l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.lim
}

// allow consumes one token for key. When throttled it reports how many
// whole seconds until a token is available.
func (l *limiter) allow(key string, now time.Time) (ok bool, remaining int, retryAfterSec int) {
	lim := l.visitor(key, now)

	res := lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, max(int(math.Ceil(delay.Seconds())), 1)
	}
	return true, max(int(math.Floor(lim.TokensAt(now))), 0), 0
}

func (l *limiter) sweepLocked(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.IdleTTL {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}

// RateLimit answers 429 with Retry-After once a client IP exhausts its
// bucket. X-RateLimit-* headers are set on every response.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.ClientIP(r, l.cfg.TrustProxy)

			ok, remaining, retry := l.allow(key, l.cfg.Now())
			w.Header().Set("X-RateLimit-Limit", limitStr)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				if l.cfg.Logger != nil {
					l.cfg.Logger.Warn("rate limited",
						logger.String("limiter", l.cfg.Name),
						logger.String("ip", key),
						logger.Int("retry_after", retry))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				respond.Error(w, http.StatusTooManyRequests, "too many requests, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
