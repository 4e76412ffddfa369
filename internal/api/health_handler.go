package api

import (
	"context"
	"net/http"
	"time"

	"github.com/replyd/replyd/internal/api/shared"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// healthResponse is the body of a health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler returns a handler for GET /health. It pings the
// database with a short deadline so a wedged pool cannot hang the
// check.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Database: "ok"}
		status := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
		shared.RespondWithJSON(w, r, status, resp)
	}
}
