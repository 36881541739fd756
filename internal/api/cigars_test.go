package api_test

import (
	"net/http"
	"testing"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/api"
	"github.com/vitolahq/vitola/internal/inventory"
	"github.com/vitolahq/vitola/internal/store"
)

func TestAddCigar(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")

	w := f.do(t, owner, http.MethodPost, "/api/humidors/"+humidor.ID+"/cigars",
		inventory.CigarInput{Brand: "Padron", Name: "1964 Anniversary", Quantity: 5})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp store.Cigar
	decodeBody(t, w, &resp)
	if resp.Brand != "Padron" || resp.Quantity != 5 {
		t.Errorf("unexpected cigar: %+v", resp)
	}
	if resp.HumidorID == nil || *resp.HumidorID != humidor.ID {
		t.Errorf("expected humidor %q, got %v", humidor.ID, resp.HumidorID)
	}
}

func TestAddCigar_EditorAddsForOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	editor := f.user(t, "editor")
	humidor := f.humidor(t, owner, "Cabinet")
	f.share(t, humidor, owner, editor, access.LevelEdit)

	w := f.do(t, editor, http.MethodPost, "/api/humidors/"+humidor.ID+"/cigars",
		inventory.CigarInput{Brand: "Oliva", Name: "Serie V", Quantity: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp store.Cigar
	decodeBody(t, w, &resp)
	// The stick belongs to the humidor's owner, not to whoever added it.
	if resp.OwnerID != owner.ID {
		t.Errorf("expected owner %q, got %q", owner.ID, resp.OwnerID)
	}
}

func TestAddCigar_ViewerForbidden(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	viewer := f.user(t, "viewer")
	humidor := f.humidor(t, owner, "Cabinet")
	f.share(t, humidor, owner, viewer, access.LevelView)

	w := f.do(t, viewer, http.MethodPost, "/api/humidors/"+humidor.ID+"/cigars",
		inventory.CigarInput{Brand: "Oliva", Name: "Serie V", Quantity: 1})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestAddCigar_Validation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")

	w := f.do(t, owner, http.MethodPost, "/api/humidors/"+humidor.ID+"/cigars",
		inventory.CigarInput{Name: "No Brand", Quantity: 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing brand, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListCigars(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	viewer := f.user(t, "viewer")
	humidor := f.humidor(t, owner, "Cabinet")
	f.cigar(t, owner, humidor.ID, "Robusto", 3)
	f.cigar(t, owner, humidor.ID, "Corona", 2)
	f.share(t, humidor, owner, viewer, access.LevelView)

	w := f.do(t, viewer, http.MethodGet, "/api/humidors/"+humidor.ID+"/cigars", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp []store.Cigar
	decodeBody(t, w, &resp)
	if len(resp) != 2 {
		t.Fatalf("expected 2 cigars, got %d", len(resp))
	}
	if resp[0].Name != "Corona" || resp[1].Name != "Robusto" {
		t.Errorf("expected name order, got %q then %q", resp[0].Name, resp[1].Name)
	}
}

func TestGetCigar_SharedAndStranger(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	viewer := f.user(t, "viewer")
	stranger := f.user(t, "stranger")
	humidor := f.humidor(t, owner, "Cabinet")
	cigar := f.cigar(t, owner, humidor.ID, "Robusto", 3)
	f.share(t, humidor, owner, viewer, access.LevelView)

	w := f.do(t, viewer, http.MethodGet, "/api/cigars/"+cigar.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("viewer: expected 200, got %d", w.Code)
	}

	w = f.do(t, stranger, http.MethodGet, "/api/cigars/"+cigar.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("stranger: expected 404, got %d", w.Code)
	}
}

func TestUpdateCigar(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")
	cigar := f.cigar(t, owner, humidor.ID, "Robusto", 3)

	name := "Robusto Extra"
	quantity := 4
	w := f.do(t, owner, http.MethodPut, "/api/cigars/"+cigar.ID,
		inventory.CigarPatch{Name: &name, Quantity: &quantity})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp store.Cigar
	decodeBody(t, w, &resp)
	if resp.Name != "Robusto Extra" || resp.Quantity != 4 {
		t.Errorf("patch not applied: %+v", resp)
	}
}

func TestUpdateCigar_MoveToWishList(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	editor := f.user(t, "editor")
	humidor := f.humidor(t, owner, "Cabinet")
	cigar := f.cigar(t, owner, humidor.ID, "Robusto", 3)
	f.share(t, humidor, owner, editor, access.LevelEdit)

	// Pulling a stick out of a shared humidor is reserved for its owner.
	empty := ""
	w := f.do(t, editor, http.MethodPut, "/api/cigars/"+cigar.ID,
		inventory.CigarPatch{HumidorID: &empty})
	if w.Code != http.StatusForbidden {
		t.Errorf("editor pull: expected 403, got %d", w.Code)
	}

	w = f.do(t, owner, http.MethodPut, "/api/cigars/"+cigar.ID,
		inventory.CigarPatch{HumidorID: &empty})
	if w.Code != http.StatusOK {
		t.Fatalf("owner pull: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp store.Cigar
	decodeBody(t, w, &resp)
	if resp.HumidorID != nil {
		t.Errorf("expected wish-list item, got humidor %v", resp.HumidorID)
	}

	w = f.do(t, owner, http.MethodGet, "/api/wishlist", nil)
	var wishList []store.Cigar
	decodeBody(t, w, &wishList)
	if len(wishList) != 1 || wishList[0].ID != cigar.ID {
		t.Errorf("expected cigar on wish list, got %d items", len(wishList))
	}
}

func TestDeleteCigar_RequiresFull(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	editor := f.user(t, "editor")
	trusted := f.user(t, "trusted")
	humidor := f.humidor(t, owner, "Cabinet")
	first := f.cigar(t, owner, humidor.ID, "Robusto", 3)
	second := f.cigar(t, owner, humidor.ID, "Corona", 2)
	f.share(t, humidor, owner, editor, access.LevelEdit)
	f.share(t, humidor, owner, trusted, access.LevelFull)

	w := f.do(t, editor, http.MethodDelete, "/api/cigars/"+first.ID, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("editor delete: expected 403, got %d", w.Code)
	}

	w = f.do(t, trusted, http.MethodDelete, "/api/cigars/"+first.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("full grantee delete: expected 204, got %d", w.Code)
	}
	w = f.do(t, owner, http.MethodDelete, "/api/cigars/"+second.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("owner delete: expected 204, got %d", w.Code)
	}
}

func TestSetFavorite(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")
	cigar := f.cigar(t, owner, humidor.ID, "Robusto", 3)

	w := f.do(t, owner, http.MethodPut, "/api/cigars/"+cigar.ID+"/favorite",
		api.FavoriteRequest{IsFavorite: true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp store.Cigar
	decodeBody(t, w, &resp)
	if !resp.IsFavorite {
		t.Error("expected favorite set")
	}

	w = f.do(t, owner, http.MethodPut, "/api/cigars/"+cigar.ID+"/favorite",
		api.FavoriteRequest{IsFavorite: false})
	decodeBody(t, w, &resp)
	if resp.IsFavorite {
		t.Error("expected favorite cleared")
	}
}

func TestMoveCigar(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	source := f.humidor(t, owner, "Cabinet")
	dest := f.humidor(t, owner, "Travel")
	cigar := f.cigar(t, owner, source.ID, "Robusto", 5)

	w := f.do(t, owner, http.MethodPost, "/api/cigars/"+cigar.ID+"/move",
		api.MoveRequest{DestinationHumidorID: dest.ID, Quantity: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var clone store.Cigar
	decodeBody(t, w, &clone)
	if clone.ID == cigar.ID {
		t.Error("expected a new row for the moved sticks")
	}
	if clone.Quantity != 2 {
		t.Errorf("expected clone quantity 2, got %d", clone.Quantity)
	}
	if clone.HumidorID == nil || *clone.HumidorID != dest.ID {
		t.Errorf("expected clone in %q, got %v", dest.ID, clone.HumidorID)
	}

	// The source keeps the remainder.
	w = f.do(t, owner, http.MethodGet, "/api/cigars/"+cigar.ID, nil)
	var remaining store.Cigar
	decodeBody(t, w, &remaining)
	if remaining.Quantity != 3 {
		t.Errorf("expected 3 left at the source, got %d", remaining.Quantity)
	}
}

func TestMoveCigar_DrainsSource(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	source := f.humidor(t, owner, "Cabinet")
	dest := f.humidor(t, owner, "Travel")
	cigar := f.cigar(t, owner, source.ID, "Robusto", 2)

	w := f.do(t, owner, http.MethodPost, "/api/cigars/"+cigar.ID+"/move",
		api.MoveRequest{DestinationHumidorID: dest.ID, Quantity: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Moving the full quantity removes the source row.
	w = f.do(t, owner, http.MethodGet, "/api/cigars/"+cigar.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected drained source gone, got %d", w.Code)
	}
}

func TestMoveCigar_Validation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	stranger := f.user(t, "stranger")
	source := f.humidor(t, owner, "Cabinet")
	foreign := f.humidor(t, stranger, "Elsewhere")
	cigar := f.cigar(t, owner, source.ID, "Robusto", 5)

	cases := []struct {
		name string
		body api.MoveRequest
		want int
	}{
		{"missing destination", api.MoveRequest{Quantity: 1}, http.StatusBadRequest},
		{"zero quantity", api.MoveRequest{DestinationHumidorID: source.ID}, http.StatusBadRequest},
		{"same humidor", api.MoveRequest{DestinationHumidorID: source.ID, Quantity: 1}, http.StatusBadRequest},
		{"more than stock", api.MoveRequest{DestinationHumidorID: foreign.ID, Quantity: 50}, http.StatusBadRequest},
		{"no edit on destination", api.MoveRequest{DestinationHumidorID: foreign.ID, Quantity: 1}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, owner, http.MethodPost, "/api/cigars/"+cigar.ID+"/move", tc.body)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestWishList(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	w := f.do(t, alice, http.MethodPost, "/api/wishlist",
		inventory.CigarInput{Brand: "Davidoff", Name: "Millennium"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var item store.Cigar
	decodeBody(t, w, &item)
	if item.HumidorID != nil {
		t.Errorf("expected container-less item, got %v", item.HumidorID)
	}

	w = f.do(t, alice, http.MethodGet, "/api/wishlist", nil)
	var list []store.Cigar
	decodeBody(t, w, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 item, got %d", len(list))
	}

	// Wish lists are private: bob sees nothing, and cannot fetch the
	// item directly.
	w = f.do(t, bob, http.MethodGet, "/api/wishlist", nil)
	decodeBody(t, w, &list)
	if len(list) != 0 {
		t.Errorf("expected empty list for bob, got %d", len(list))
	}
	w = f.do(t, bob, http.MethodGet, "/api/cigars/"+item.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign wish-list item, got %d", w.Code)
	}
}
