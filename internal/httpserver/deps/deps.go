package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/account"
	"github.com/MrSnakeDoc/marksync/internal/analyze"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
)

// Pinger is satisfied by the relational store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger            logger.Logger
	StartTime         time.Time
	Version           string
	Commit            string
	BuildDate         string
	GoVersion         string
	TimeNow           func() time.Time          // for testing, defaults to time.Now
	AllowedHosts      []string                  // Host headers allowed to access the server
	AllowedCIDRS      []string                  // IPs allowed to access healthz/readyz/infra endpoints
	TrustProxy        bool                      // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins       []string                  // Origins allowed by the CORS middleware
	MaxSnapshotSize   int                       // Max entries accepted by one sync call
	MaxBodyBytes      int64                     // Max request body size
	MaxAnalyzeURLs    int                       // Max urls accepted by one batch-analyze call
	RequestTimeout    time.Duration             // Default per-request timeout
	AnalyzeTimeout    time.Duration             // Per-request timeout of the analyze routes
	LoginBurst        int                       // Login attempts allowed per IP before throttling
	LoginRefillPerMin int                       // Login attempts regained per IP per minute
	DB                Pinger                    // Relational store, checked by readyz
	RedisClient       *redis.Client             // Redis client connection (nil when not configured)
	LockMode          string                    // "redis" or "local"
	Reconciler        *reconcile.Reconciler     // Merges client snapshots
	Accounts          *account.Service          // Users, tokens and admin operations
	Analyzer          *analyze.Service          // Page fetch + classification
	Stats             *scheduler.StatsRefresher // Global stats snapshot
	StatsTrigger      chan struct{}             // Channel to trigger a manual stats refresh
}

// Now returns TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
