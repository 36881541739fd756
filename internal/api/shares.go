package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/sharing"
	"github.com/vitolahq/vitola/internal/store"
)

// ShareHandler handles per-humidor share endpoints.
type ShareHandler struct {
	sharing  *sharing.Service
	resolver *access.Resolver
}

// NewShareHandler creates a new share handler.
func NewShareHandler(sh *sharing.Service, resolver *access.Resolver) *ShareHandler {
	return &ShareHandler{sharing: sh, resolver: resolver}
}

// List handles GET /api/humidors/{humidorID}/shares. The grant list
// is itself privileged: a view or edit collaborator cannot enumerate
// who else has access.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	humidorID := chi.URLParam(r, "humidorID")
	if _, _, err := h.resolver.Require(r.Context(), user.ID, humidorID, access.LevelFull); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	grants, err := h.sharing.List(r.Context(), humidorID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, grants)
}

// GrantRequest is the request body for creating or updating a grant.
type GrantRequest struct {
	GranteeID       string `json:"grantee_id"`
	PermissionLevel string `json:"permission_level"`
}

// Grant handles POST /api/humidors/{humidorID}/shares. Granting to a
// user who already holds a grant overwrites its level.
func (h *ShareHandler) Grant(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req GrantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.GranteeID == "" {
		WriteBadRequest(w, "grantee_id required")
		return
	}
	level, err := access.ParseLevel(req.PermissionLevel)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	humidor, _, err := h.resolver.Require(r.Context(), user.ID, chi.URLParam(r, "humidorID"), access.LevelFull)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	grant, err := h.sharing.Grant(r.Context(), humidor, user, req.GranteeID, level)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, grant)
}

// LevelRequest is the request body for a level change.
type LevelRequest struct {
	PermissionLevel string `json:"permission_level"`
}

// UpdateLevel handles PUT /api/humidors/{humidorID}/shares/{granteeID}.
func (h *ShareHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req LevelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	level, err := access.ParseLevel(req.PermissionLevel)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	humidor, _, err := h.resolver.Require(r.Context(), user.ID, chi.URLParam(r, "humidorID"), access.LevelFull)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	grant, err := h.sharing.UpdateLevel(r.Context(), humidor, user, chi.URLParam(r, "granteeID"), level)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, grant)
}

// Revoke handles DELETE /api/humidors/{humidorID}/shares/{granteeID}.
// Revoking a grant that does not exist succeeds; the end state is the
// same either way.
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	humidorID := chi.URLParam(r, "humidorID")
	if _, _, err := h.resolver.Require(r.Context(), user.ID, humidorID, access.LevelFull); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	err := h.sharing.Revoke(r.Context(), humidorID, chi.URLParam(r, "granteeID"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
