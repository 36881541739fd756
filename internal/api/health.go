package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vitolahq/vitola/internal/store"
)

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Driver string `json:"driver,omitempty"`
}

// HealthHandler handles GET /api/healthz requests.
type HealthHandler struct {
	store store.Driver
}

// NewHealthHandler creates a health handler over the storage driver.
func NewHealthHandler(s store.Driver) *HealthHandler {
	return &HealthHandler{store: s}
}

// Check pings the store with a short deadline, so a wedged backend
// turns the health endpoint red instead of hanging it.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}

	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Driver: h.store.Name()})
}
