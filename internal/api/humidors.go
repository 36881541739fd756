package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/inventory"
	"github.com/vitolahq/vitola/internal/sharing"
	"github.com/vitolahq/vitola/internal/store"
)

// HumidorHandler handles humidor endpoints.
type HumidorHandler struct {
	inventory *inventory.Service
	sharing   *sharing.Service
}

// NewHumidorHandler creates a new humidor handler.
func NewHumidorHandler(inv *inventory.Service, sh *sharing.Service) *HumidorHandler {
	return &HumidorHandler{inventory: inv, sharing: sh}
}

// HumidorResponse is a humidor plus the caller's relationship to it.
type HumidorResponse struct {
	*store.Humidor
	PermissionLevel string `json:"permission_level"`
	IsOwner         bool   `json:"is_owner"`
}

// List handles GET /api/humidors. Only the caller's own humidors are
// returned; incoming shares live under shared-with-me.
func (h *HumidorHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	humidors, err := h.inventory.ListHumidors(r.Context(), user.ID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, humidors)
}

// SharedWithMe handles GET /api/humidors/shared-with-me.
func (h *HumidorHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	shared, err := h.sharing.SharedWithUser(r.Context(), user.ID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, shared)
}

// Create handles POST /api/humidors.
func (h *HumidorHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in inventory.HumidorInput
	if !decodeJSON(w, r, &in) {
		return
	}

	humidor, err := h.inventory.CreateHumidor(r.Context(), user.ID, in)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, HumidorResponse{
		Humidor:         humidor,
		PermissionLevel: access.LevelFull.String(),
		IsOwner:         true,
	})
}

// Get handles GET /api/humidors/{humidorID}.
func (h *HumidorHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	humidor, level, err := h.inventory.GetHumidor(r.Context(), user.ID, chi.URLParam(r, "humidorID"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, HumidorResponse{
		Humidor:         humidor,
		PermissionLevel: level.String(),
		IsOwner:         humidor.OwnerID == user.ID,
	})
}

// Update handles PUT /api/humidors/{humidorID}.
func (h *HumidorHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var patch inventory.HumidorPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	humidor, err := h.inventory.UpdateHumidor(r.Context(), user.ID, chi.URLParam(r, "humidorID"), patch)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, humidor)
}

// Delete handles DELETE /api/humidors/{humidorID}.
func (h *HumidorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.inventory.DeleteHumidor(r.Context(), user.ID, chi.URLParam(r, "humidorID")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
