package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness probe endpoint. It never touches a store
// or provider, so a degraded upstream cannot fail the probe.
type HealthHandler struct {
	started time.Time
}

func NewHealthHandler() *HealthHandler { return &HealthHandler{started: time.Now()} }

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
