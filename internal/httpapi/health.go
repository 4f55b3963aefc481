package httpapi

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	pinger Pinger
}

// HandleHealth handles GET /healthz. It reports 503 when the database does
// not answer.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "Event knowledge agent is active"})
}
