package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitolahq/vitola/internal/publiclink"
)

// PublicLinkHandler handles token management and the public view.
type PublicLinkHandler struct {
	registry  *publiclink.Registry
	assembler *publiclink.Assembler
}

// NewPublicLinkHandler creates a new public link handler.
func NewPublicLinkHandler(registry *publiclink.Registry, assembler *publiclink.Assembler) *PublicLinkHandler {
	return &PublicLinkHandler{registry: registry, assembler: assembler}
}

// List handles GET /api/humidors/{humidorID}/public-links.
func (h *PublicLinkHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	links, err := h.registry.List(r.Context(), user, chi.URLParam(r, "humidorID"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, links)
}

// CreateLinkRequest is the request body for minting a public link.
type CreateLinkRequest struct {
	ExpiresAt        *time.Time `json:"expires_at"`
	NeverExpires     bool       `json:"never_expires"`
	IncludeFavorites bool       `json:"include_favorites"`
	IncludeWishList  bool       `json:"include_wish_list"`
	Label            string     `json:"label"`
}

// Create handles POST /api/humidors/{humidorID}/public-links.
func (h *PublicLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	link, err := h.registry.Create(r.Context(), user, chi.URLParam(r, "humidorID"), publiclink.CreateOptions{
		ExpiresAt:        req.ExpiresAt,
		NeverExpires:     req.NeverExpires,
		IncludeFavorites: req.IncludeFavorites,
		IncludeWishList:  req.IncludeWishList,
		Label:            req.Label,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, link)
}

// RevokeAll handles DELETE /api/humidors/{humidorID}/public-links.
func (h *PublicLinkHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	n, err := h.registry.RevokeAll(r.Context(), user, chi.URLParam(r, "humidorID"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

// RevokeOne handles DELETE /api/public-links/{tokenID}.
func (h *PublicLinkHandler) RevokeOne(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.registry.RevokeOne(r.Context(), user, chi.URLParam(r, "tokenID")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublicView handles GET /public/humidors/{tokenID} without any
// session. Every failure collapses into one 404 body: an invalid
// token, a revoked token, and a storage outage must be outwardly
// indistinguishable.
func (h *PublicLinkHandler) PublicView(w http.ResponseWriter, r *http.Request) {
	view, err := h.assembler.Assemble(r.Context(), chi.URLParam(r, "tokenID"))
	if err != nil {
		WriteNotFound(w, "not found")
		return
	}
	WriteJSON(w, http.StatusOK, view)
}
