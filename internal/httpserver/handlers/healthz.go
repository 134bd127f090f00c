package handlers

import (
	"net/http"

	"github.com/cosmik-network/cardsync/internal/httpserver/deps"
	"github.com/cosmik-network/cardsync/internal/version"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	version.Info
}

// Healthz is a liveness probe: it answers as long as the process serves
// HTTP and reports the build it runs.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
			Info:          d.Build,
		})
	}
}
