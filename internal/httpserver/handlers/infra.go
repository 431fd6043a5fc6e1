package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
)

type componentStatus struct {
	OK          bool                     `json:"ok"`
	Mode        string                   `json:"mode,omitempty"`
	Impact      string                   `json:"impact,omitempty"`
	Error       string                   `json:"error,omitempty"`
	LastRefresh string                   `json:"last_refresh,omitempty"`
	Stats       *scheduler.StatsSnapshot `json:"stats,omitempty"`
}

type infraResponse struct {
	SyncMode   string                     `json:"sync_mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"database": checkDatabase(ctx, d),
			"redis":    checkRedis(ctx, d),
			"lock": {
				OK:   true,
				Mode: d.LockMode,
			},
			"stats": statsStatus(d),
		}

		respond.JSON(w, http.StatusOK, infraResponse{
			SyncMode:   determineSyncMode(components),
			Components: components,
		})
	}
}

func determineSyncMode(components map[string]componentStatus) string {
	// No database = no merge can succeed
	if db, exists := components["database"]; exists && !db.OK {
		return "critical"
	}

	// Redis down = locks and cache fail, merges return 503
	if redis, exists := components["redis"]; exists && !redis.OK && redis.Mode != "disabled" {
		return "degraded"
	}

	return "operational"
}

func checkDatabase(ctx context.Context, d deps.Deps) componentStatus {
	if d.DB == nil {
		return componentStatus{OK: false, Error: "not initialized"}
	}
	if err := d.DB.Ping(ctx); err != nil {
		return componentStatus{OK: false, Impact: "sync-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "sqlite"}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     true,
			Mode:   "disabled",
			Impact: "in-process-locks-no-page-cache",
		}
	}

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "sync-and-page-cache-unavailable",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "distributed-locks-and-page-cache",
	}
}

func statsStatus(d deps.Deps) componentStatus {
	if d.Stats == nil {
		return componentStatus{OK: false, Error: "refresher not initialized"}
	}
	snap, ok := d.Stats.Last()
	if !ok {
		return componentStatus{OK: false, LastRefresh: "never"}
	}
	return componentStatus{
		OK:          true,
		LastRefresh: snap.RefreshedAt.Format("2006-01-02 15:04:05"),
		Stats:       &snap,
	}
}
