package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
)

const readyCheckTimeout = 2 * time.Second

type readyzResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Readyz reports ready once the database (and redis, when configured)
// answer a ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		resp := readyzResponse{Ready: true, Checks: map[string]string{}}

		if d.DB == nil {
			resp.Ready = false
			resp.Checks["database"] = "not initialized"
		} else if err := d.DB.Ping(ctx); err != nil {
			resp.Ready = false
			resp.Checks["database"] = err.Error()
		} else {
			resp.Checks["database"] = "ok"
		}

		if d.RedisClient != nil {
			if err := d.RedisClient.Ping(ctx).Err(); err != nil {
				resp.Ready = false
				resp.Checks["redis"] = err.Error()
			} else {
				resp.Checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(w, status, resp)
	}
}
