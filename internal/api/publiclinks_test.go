package api_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/api"
	"github.com/vitolahq/vitola/internal/publiclink"
	"github.com/vitolahq/vitola/internal/store"
)

func TestCreatePublicLink(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")

	w := f.do(t, owner, http.MethodPost, "/api/humidors/"+humidor.ID+"/public-links",
		api.CreateLinkRequest{NeverExpires: true, Label: "for the lounge"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var link publiclink.ShareLink
	decodeBody(t, w, &link)
	if link.TokenID == "" {
		t.Fatal("expected a token id")
	}
	if link.ShareURL != testBaseURL+"/public/humidors/"+link.TokenID {
		t.Errorf("unexpected share url %q", link.ShareURL)
	}
	if !link.Active {
		t.Error("expected a fresh link to be active")
	}
	if link.Label != "for the lounge" {
		t.Errorf("expected label kept, got %q", link.Label)
	}
}

func TestCreatePublicLink_ExpiryConflict(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")

	expiry := time.Now().Add(time.Hour)
	w := f.do(t, owner, http.MethodPost, "/api/humidors/"+humidor.ID+"/public-links",
		api.CreateLinkRequest{ExpiresAt: &expiry, NeverExpires: true})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreatePublicLink_RequiresFull(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	editor := f.user(t, "editor")
	stranger := f.user(t, "stranger")
	humidor := f.humidor(t, owner, "Cabinet")
	f.share(t, humidor, owner, editor, access.LevelEdit)

	w := f.do(t, editor, http.MethodPost, "/api/humidors/"+humidor.ID+"/public-links",
		api.CreateLinkRequest{NeverExpires: true})
	if w.Code != http.StatusForbidden {
		t.Errorf("editor: expected 403, got %d", w.Code)
	}
	w = f.do(t, stranger, http.MethodPost, "/api/humidors/"+humidor.ID+"/public-links",
		api.CreateLinkRequest{NeverExpires: true})
	if w.Code != http.StatusNotFound {
		t.Errorf("stranger: expected 404, got %d", w.Code)
	}
}

func TestListPublicLinks(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")
	first := f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})
	f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})

	if err := f.registry.RevokeOne(context.Background(), owner, first.TokenID); err != nil {
		t.Fatal(err)
	}

	// Revoked links stay listed so the user can see the full history.
	w := f.do(t, owner, http.MethodGet, "/api/humidors/"+humidor.ID+"/public-links", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var links []publiclink.ShareLink
	decodeBody(t, w, &links)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	var revoked, active int
	for _, l := range links {
		if l.Revoked {
			revoked++
		}
		if l.Active {
			active++
		}
	}
	if revoked != 1 || active != 1 {
		t.Errorf("expected 1 revoked and 1 active, got %d/%d", revoked, active)
	}
}

func TestRevokeOnePublicLink(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	stranger := f.user(t, "stranger")
	humidor := f.humidor(t, owner, "Cabinet")
	link := f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})

	// Someone else cannot revoke it, and learns nothing about it.
	w := f.do(t, stranger, http.MethodDelete, "/api/public-links/"+link.TokenID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("stranger revoke: expected 404, got %d", w.Code)
	}

	w = f.do(t, owner, http.MethodDelete, "/api/public-links/"+link.TokenID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// Revoking twice is a no-op.
	w = f.do(t, owner, http.MethodDelete, "/api/public-links/"+link.TokenID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("repeat revoke: expected 204, got %d", w.Code)
	}

	// Unknown token ids answer like foreign ones.
	w = f.do(t, owner, http.MethodDelete, "/api/public-links/"+store.NewID(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown token: expected 404, got %d", w.Code)
	}
}

func TestRevokeAllPublicLinks(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")
	f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})
	f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})

	w := f.do(t, owner, http.MethodDelete, "/api/humidors/"+humidor.ID+"/public-links", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]int
	decodeBody(t, w, &resp)
	if resp["revoked"] != 2 {
		t.Errorf("expected 2 revoked, got %d", resp["revoked"])
	}

	// Nothing left to revoke.
	w = f.do(t, owner, http.MethodDelete, "/api/humidors/"+humidor.ID+"/public-links", nil)
	decodeBody(t, w, &resp)
	if resp["revoked"] != 0 {
		t.Errorf("expected 0 revoked on repeat, got %d", resp["revoked"])
	}
}

func TestPublicView(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")
	f.cigar(t, owner, humidor.ID, "Robusto", 3)
	link := f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})

	// No session required.
	w := f.do(t, nil, http.MethodGet, "/public/humidors/"+link.TokenID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var view publiclink.PublicHumidor
	decodeBody(t, w, &view)
	if view.Name != "Cabinet" {
		t.Errorf("expected humidor name, got %q", view.Name)
	}
	if view.Owner.Username != "owner" {
		t.Errorf("expected owner username, got %q", view.Owner.Username)
	}
	if len(view.Cigars) != 1 || view.CigarCount != 1 {
		t.Errorf("expected 1 cigar, got %d (count %d)", len(view.Cigars), view.CigarCount)
	}

	// The anonymous view carries no account ids, emails or purchase
	// data.
	body := w.Body.String()
	for _, secret := range []string{owner.ID, "owner@example.com", "price", "purchase_date"} {
		if strings.Contains(body, secret) {
			t.Errorf("public view leaks %q", secret)
		}
	}
}

func TestPublicView_Sections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")
	cigar := f.cigar(t, owner, humidor.ID, "Robusto", 3)
	f.cigar(t, owner, "", "Wished For", 0)
	if _, err := f.inventory.SetFavorite(ctx, owner.ID, cigar.ID, true); err != nil {
		t.Fatal(err)
	}

	bare := f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})
	rich := f.link(t, owner, humidor.ID, publiclink.CreateOptions{
		NeverExpires:     true,
		IncludeFavorites: true,
		IncludeWishList:  true,
	})

	var view publiclink.PublicHumidor

	w := f.do(t, nil, http.MethodGet, "/public/humidors/"+bare.TokenID, nil)
	decodeBody(t, w, &view)
	if view.Favorites != nil || view.WishList != nil {
		t.Errorf("expected sections withheld, got favorites=%v wishlist=%v", view.Favorites, view.WishList)
	}

	w = f.do(t, nil, http.MethodGet, "/public/humidors/"+rich.TokenID, nil)
	decodeBody(t, w, &view)
	if len(view.Favorites) != 1 {
		t.Errorf("expected 1 favorite, got %d", len(view.Favorites))
	}
	if len(view.WishList) != 1 {
		t.Errorf("expected 1 wish-list item, got %d", len(view.WishList))
	}
}

func TestPublicView_Uniform404(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")

	revokedLink := f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})
	if err := f.registry.RevokeOne(ctx, owner, revokedLink.TokenID); err != nil {
		t.Fatal(err)
	}

	// An expired token, seeded directly in the store.
	past := time.Now().UTC().Add(-time.Hour)
	expired := &store.PublicToken{
		TokenID:     store.NewID(),
		ContainerID: humidor.ID,
		CreatedBy:   owner.ID,
		CreatedAt:   past.Add(-time.Hour),
		ExpiresAt:   &past,
	}
	if err := f.store.CreateToken(ctx, expired); err != nil {
		t.Fatal(err)
	}

	unknown := f.do(t, nil, http.MethodGet, "/public/humidors/"+store.NewID(), nil)
	revoked := f.do(t, nil, http.MethodGet, "/public/humidors/"+revokedLink.TokenID, nil)
	stale := f.do(t, nil, http.MethodGet, "/public/humidors/"+expired.TokenID, nil)

	for name, w := range map[string]int{
		"unknown": unknown.Code,
		"revoked": revoked.Code,
		"expired": stale.Code,
	} {
		if w != http.StatusNotFound {
			t.Errorf("%s token: expected 404, got %d", name, w)
		}
	}

	// Byte-identical bodies: the outside world cannot tell why.
	if unknown.Body.String() != revoked.Body.String() || unknown.Body.String() != stale.Body.String() {
		t.Errorf("expected identical 404 bodies, got %q / %q / %q",
			unknown.Body.String(), revoked.Body.String(), stale.Body.String())
	}
}

func TestPublicView_RevocationBitesImmediately(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	humidor := f.humidor(t, owner, "Cabinet")
	link := f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})
	sibling := f.link(t, owner, humidor.ID, publiclink.CreateOptions{NeverExpires: true})

	w := f.do(t, nil, http.MethodGet, "/public/humidors/"+link.TokenID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 before revoke, got %d", w.Code)
	}

	w = f.do(t, owner, http.MethodDelete, "/api/public-links/"+link.TokenID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", w.Code)
	}

	// No grace period, no cached view.
	w = f.do(t, nil, http.MethodGet, "/public/humidors/"+link.TokenID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 right after revoke, got %d", w.Code)
	}

	// Revocation is per token; the other link keeps serving.
	w = f.do(t, nil, http.MethodGet, "/public/humidors/"+sibling.TokenID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("sibling token: expected 200, got %d", w.Code)
	}
}
