package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitolahq/vitola/internal/inventory"
)

// CigarHandler handles cigar and wish-list endpoints.
type CigarHandler struct {
	inventory *inventory.Service
}

// NewCigarHandler creates a new cigar handler.
func NewCigarHandler(inv *inventory.Service) *CigarHandler {
	return &CigarHandler{inventory: inv}
}

// ListByHumidor handles GET /api/humidors/{humidorID}/cigars.
func (h *CigarHandler) ListByHumidor(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	cigars, err := h.inventory.ListCigars(r.Context(), user.ID, chi.URLParam(r, "humidorID"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, cigars)
}

// AddToHumidor handles POST /api/humidors/{humidorID}/cigars.
func (h *CigarHandler) AddToHumidor(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in inventory.CigarInput
	if !decodeJSON(w, r, &in) {
		return
	}

	cigar, err := h.inventory.AddCigar(r.Context(), user.ID, chi.URLParam(r, "humidorID"), in)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, cigar)
}

// Get handles GET /api/cigars/{cigarID}.
func (h *CigarHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	cigar, err := h.inventory.GetCigar(r.Context(), user.ID, chi.URLParam(r, "cigarID"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, cigar)
}

// Update handles PUT /api/cigars/{cigarID}. A "humidor_id" of another
// container moves the cigar there; the empty string moves it to the
// owner's wish list.
func (h *CigarHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var patch inventory.CigarPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	cigar, err := h.inventory.UpdateCigar(r.Context(), user.ID, chi.URLParam(r, "cigarID"), patch)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, cigar)
}

// Delete handles DELETE /api/cigars/{cigarID}.
func (h *CigarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.inventory.DeleteCigar(r.Context(), user.ID, chi.URLParam(r, "cigarID")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FavoriteRequest is the request body for the favorite toggle.
type FavoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

// SetFavorite handles PUT /api/cigars/{cigarID}/favorite.
func (h *CigarHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req FavoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cigar, err := h.inventory.SetFavorite(r.Context(), user.ID, chi.URLParam(r, "cigarID"), req.IsFavorite)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, cigar)
}

// MoveRequest is the request body for splitting sticks off a cigar.
type MoveRequest struct {
	DestinationHumidorID string `json:"destination_humidor_id"`
	Quantity             int    `json:"quantity"`
}

// Move handles POST /api/cigars/{cigarID}/move. The response is the
// clone created in the destination humidor.
func (h *CigarHandler) Move(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DestinationHumidorID == "" {
		WriteBadRequest(w, "destination_humidor_id required")
		return
	}

	clone, err := h.inventory.MoveQuantity(r.Context(), user.ID, chi.URLParam(r, "cigarID"), req.DestinationHumidorID, req.Quantity)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, clone)
}

// ListWishList handles GET /api/wishlist.
func (h *CigarHandler) ListWishList(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	items, err := h.inventory.ListWishList(r.Context(), user.ID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// AddWishListItem handles POST /api/wishlist.
func (h *CigarHandler) AddWishListItem(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in inventory.CigarInput
	if !decodeJSON(w, r, &in) {
		return
	}

	item, err := h.inventory.AddWishListItem(r.Context(), user.ID, in)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}
