package handler

import (
	"net/http"

	"github.com/solweekly/weekly-roundup/internal/service"
)

// StatusHandler serves a JSON snapshot of which backends are active.
// Raw Prometheus metrics are available at /metrics via promhttp and are
// separate from this endpoint. Nothing here reveals a credential.
type StatusHandler struct {
	registry      *service.Registry
	auth          *service.AdminAuth
	emailProvider string
	senderReady   bool
}

func NewStatusHandler(registry *service.Registry, auth *service.AdminAuth, emailProvider string, senderReady bool) *StatusHandler {
	return &StatusHandler{
		registry:      registry,
		auth:          auth,
		emailProvider: emailProvider,
		senderReady:   senderReady,
	}
}

// GetStatus handles GET /api/status
//
// @Summary  Active storage and delivery backends
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/status [get]
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"subscribers": h.registry.Status(),
		"email": map[string]any{
			"provider":   h.emailProvider,
			"configured": h.senderReady,
		},
		"admin_auth_configured": h.auth.Configured(),
	})
}
