// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/vitolahq/vitola/internal/store"
)

// TestUser creates a test user. The username doubles as the email
// local part so callers get unique rows per username.
func TestUser(username string) *store.User {
	now := time.Now().UTC()
	return &store.User{
		ID:           store.NewID(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test User",
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
		IsAdmin:      false,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TestHumidor creates a test humidor owned by the given user.
func TestHumidor(ownerID string) *store.Humidor {
	now := time.Now().UTC()
	capacity := 50
	humidity := 68
	return &store.Humidor{
		ID:             store.NewID(),
		OwnerID:        ownerID,
		Name:           "Desktop Humidor",
		Description:    "Cedar lined",
		Capacity:       &capacity,
		TargetHumidity: &humidity,
		Location:       "Office",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TestCigar creates a test cigar. An empty humidorID makes it a
// wish-list item.
func TestCigar(ownerID, humidorID string) *store.Cigar {
	now := time.Now().UTC()
	cigar := &store.Cigar{
		ID:        store.NewID(),
		OwnerID:   ownerID,
		Brand:     "Padron",
		Name:      "1964 Anniversary",
		Size:      "Torpedo",
		Strength:  "full",
		Origin:    "Nicaragua",
		Wrapper:   "Maduro",
		Quantity:  5,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if humidorID != "" {
		id := humidorID
		cigar.HumidorID = &id
	}
	return cigar
}

// TestShare creates a test share granting view access.
func TestShare(containerID, granteeID string) *store.Share {
	return &store.Share{
		ContainerID:   containerID,
		GranteeUserID: granteeID,
		Level:         "view",
		GrantedBy:     "some-owner-id",
		CreatedAt:     time.Now().UTC(),
	}
}

// TestToken creates a test public token without expiry.
func TestToken(containerID, createdBy string) *store.PublicToken {
	return &store.PublicToken{
		TokenID:     store.NewID(),
		ContainerID: containerID,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	s, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer s.Close()

	if err := s.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if s.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, s.Name())
	}

	t.Run("UserCRUD", func(t *testing.T) {
		TestUserCRUD(t, ctx, s)
	})

	t.Run("UserPagination", func(t *testing.T) {
		TestUserPagination(t, ctx, s)
	})

	t.Run("HumidorCRUD", func(t *testing.T) {
		TestHumidorCRUD(t, ctx, s)
	})

	t.Run("CigarCRUD", func(t *testing.T) {
		TestCigarCRUD(t, ctx, s)
	})

	t.Run("ShareUpsert", func(t *testing.T) {
		TestShareUpsert(t, ctx, s)
	})

	t.Run("TokenLifecycle", func(t *testing.T) {
		TestTokenLifecycle(t, ctx, s)
	})

	t.Run("HumidorCascade", func(t *testing.T) {
		TestHumidorCascade(t, ctx, s)
	})

	t.Run("UserCascade", func(t *testing.T) {
		TestUserCascade(t, ctx, s)
	})

	t.Run("TransferAll", func(t *testing.T) {
		TestTransferAll(t, ctx, s)
	})

	t.Run("TransferSingle", func(t *testing.T) {
		TestTransferSingle(t, ctx, s)
	})

	t.Run("TransferNotFound", func(t *testing.T) {
		TestTransferNotFound(t, ctx, s)
	})
}

// TestUserCRUD tests CRUD operations and uniqueness for users.
func TestUserCRUD(t *testing.T, ctx context.Context, s store.Store) {
	user := TestUser("crud-alice")

	// Create
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// Duplicate username
	dup := TestUser("crud-alice")
	if err := s.CreateUser(ctx, dup); err != store.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists for duplicate username, got %v", err)
	}

	// Get by id
	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "crud-alice" {
		t.Errorf("expected username crud-alice, got %q", got.Username)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Error("expected password hash to round-trip")
	}

	// Get by username
	got, err = s.GetUserByUsername(ctx, "crud-alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected id %q, got %q", user.ID, got.ID)
	}

	// Get by email, case-insensitively
	got, err = s.GetUserByEmail(ctx, "CRUD-Alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected id %q by email, got %q", user.ID, got.ID)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown email, got %v", err)
	}

	// Update
	user.FullName = "Alice Example"
	user.IsAdmin = true
	if err := s.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	got, _ = s.GetUser(ctx, user.ID)
	if got.FullName != "Alice Example" || !got.IsAdmin {
		t.Errorf("update not persisted: %+v", got)
	}

	// Delete
	if err := s.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := s.GetUser(ctx, user.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "crud-alice"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound by username after delete, got %v", err)
	}

	// Username freed for reuse
	if err := s.CreateUser(ctx, TestUser("crud-alice")); err != nil {
		t.Errorf("expected username to be reusable after delete, got %v", err)
	}
}

// TestUserPagination tests offset/limit listing ordered newest first.
func TestUserPagination(t *testing.T, ctx context.Context, s store.Store) {
	// Future timestamps so these three sort ahead of any other rows.
	base := time.Now().UTC().Add(24 * time.Hour)
	var created []*store.User
	for i, name := range []string{"page-one", "page-two", "page-three"} {
		u := TestUser(name)
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser %s failed: %v", name, err)
		}
		created = append(created, u)
	}

	users, total, err := s.ListUsers(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if total < 3 {
		t.Errorf("expected total >= 3, got %d", total)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "page-three" || users[1].Username != "page-two" {
		t.Errorf("expected newest first, got %q then %q", users[0].Username, users[1].Username)
	}

	users, _, err = s.ListUsers(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListUsers with offset failed: %v", err)
	}
	if len(users) == 0 || users[0].Username != "page-one" {
		t.Errorf("expected page-one at offset 2")
	}

	// Offset past the end returns an empty page, not an error.
	users, _, err = s.ListUsers(ctx, 100000, 2)
	if err != nil {
		t.Fatalf("ListUsers past end failed: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected empty page past end, got %d users", len(users))
	}

	for _, u := range created {
		s.DeleteUser(ctx, u.ID)
	}
}

// TestHumidorCRUD tests CRUD operations and owner listing for humidors.
func TestHumidorCRUD(t *testing.T, ctx context.Context, s store.Store) {
	owner := TestUser("humidor-owner")
	if err := s.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	first := TestHumidor(owner.ID)
	first.Name = "First"
	first.CreatedAt = base
	second := TestHumidor(owner.ID)
	second.Name = "Second"
	second.CreatedAt = base.Add(time.Minute)

	if err := s.CreateHumidor(ctx, first); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}
	if err := s.CreateHumidor(ctx, second); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}

	got, err := s.GetHumidor(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetHumidor failed: %v", err)
	}
	if got.Name != "First" {
		t.Errorf("expected name First, got %q", got.Name)
	}
	if got.Capacity == nil || *got.Capacity != 50 {
		t.Errorf("expected capacity 50, got %v", got.Capacity)
	}

	// List is ordered oldest first
	humidors, err := s.ListHumidorsByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListHumidorsByOwner failed: %v", err)
	}
	if len(humidors) != 2 {
		t.Fatalf("expected 2 humidors, got %d", len(humidors))
	}
	if humidors[0].Name != "First" || humidors[1].Name != "Second" {
		t.Errorf("expected creation order, got %q then %q", humidors[0].Name, humidors[1].Name)
	}

	// Update
	first.Name = "Renamed"
	first.TargetHumidity = nil
	if err := s.UpdateHumidor(ctx, first); err != nil {
		t.Fatalf("UpdateHumidor failed: %v", err)
	}
	got, _ = s.GetHumidor(ctx, first.ID)
	if got.Name != "Renamed" {
		t.Errorf("expected name Renamed, got %q", got.Name)
	}

	// Delete
	if err := s.DeleteHumidor(ctx, second.ID); err != nil {
		t.Fatalf("DeleteHumidor failed: %v", err)
	}
	if _, err := s.GetHumidor(ctx, second.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteHumidor(ctx, second.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}

	s.DeleteUser(ctx, owner.ID)
}

// TestCigarCRUD tests cigar operations including wish-list items.
func TestCigarCRUD(t *testing.T, ctx context.Context, s store.Store) {
	owner := TestUser("cigar-owner")
	if err := s.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	humidor := TestHumidor(owner.ID)
	if err := s.CreateHumidor(ctx, humidor); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}

	zulu := TestCigar(owner.ID, humidor.ID)
	zulu.Name = "Zulu Especial"
	alpha := TestCigar(owner.ID, humidor.ID)
	alpha.Name = "Alpha Robusto"
	wish := TestCigar(owner.ID, "")
	wish.Name = "Wished For"
	wish.Quantity = 0

	for _, c := range []*store.Cigar{zulu, alpha, wish} {
		if err := s.CreateCigar(ctx, c); err != nil {
			t.Fatalf("CreateCigar %s failed: %v", c.Name, err)
		}
	}

	got, err := s.GetCigar(ctx, zulu.ID)
	if err != nil {
		t.Fatalf("GetCigar failed: %v", err)
	}
	if got.HumidorID == nil || *got.HumidorID != humidor.ID {
		t.Errorf("expected humidor id %q, got %v", humidor.ID, got.HumidorID)
	}

	// Humidor listing is name ordered and leaves out wish-list items
	cigars, err := s.ListCigarsByHumidor(ctx, humidor.ID)
	if err != nil {
		t.Fatalf("ListCigarsByHumidor failed: %v", err)
	}
	if len(cigars) != 2 {
		t.Fatalf("expected 2 cigars, got %d", len(cigars))
	}
	if cigars[0].Name != "Alpha Robusto" || cigars[1].Name != "Zulu Especial" {
		t.Errorf("expected name order, got %q then %q", cigars[0].Name, cigars[1].Name)
	}

	count, err := s.CountCigarsByHumidor(ctx, humidor.ID)
	if err != nil {
		t.Fatalf("CountCigarsByHumidor failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}

	// Wish-list listing only returns container-less items
	wishList, err := s.ListWishList(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListWishList failed: %v", err)
	}
	if len(wishList) != 1 || wishList[0].Name != "Wished For" {
		t.Errorf("expected only the wish-list item, got %d items", len(wishList))
	}

	// Update: move the wish-list item into the humidor
	wish.HumidorID = &humidor.ID
	wish.Quantity = 3
	if err := s.UpdateCigar(ctx, wish); err != nil {
		t.Fatalf("UpdateCigar failed: %v", err)
	}
	count, _ = s.CountCigarsByHumidor(ctx, humidor.ID)
	if count != 3 {
		t.Errorf("expected count 3 after move, got %d", count)
	}
	wishList, _ = s.ListWishList(ctx, owner.ID)
	if len(wishList) != 0 {
		t.Errorf("expected empty wish list after move, got %d items", len(wishList))
	}

	// Delete
	if err := s.DeleteCigar(ctx, alpha.ID); err != nil {
		t.Fatalf("DeleteCigar failed: %v", err)
	}
	if _, err := s.GetCigar(ctx, alpha.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteCigar(ctx, alpha.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}

	s.DeleteUser(ctx, owner.ID)
}

// TestShareUpsert tests grant, overwrite and revoke semantics.
func TestShareUpsert(t *testing.T, ctx context.Context, s store.Store) {
	owner := TestUser("share-owner")
	grantee := TestUser("share-grantee")
	other := TestUser("share-other")
	for _, u := range []*store.User{owner, grantee, other} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	humidor := TestHumidor(owner.ID)
	if err := s.CreateHumidor(ctx, humidor); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}

	share := TestShare(humidor.ID, grantee.ID)
	share.GrantedBy = owner.ID
	share.CreatedAt = time.Now().UTC().Add(-time.Hour)
	if err := s.UpsertShare(ctx, share); err != nil {
		t.Fatalf("UpsertShare failed: %v", err)
	}

	got, err := s.GetShare(ctx, humidor.ID, grantee.ID)
	if err != nil {
		t.Fatalf("GetShare failed: %v", err)
	}
	if got.Level != "view" {
		t.Errorf("expected level view, got %q", got.Level)
	}

	// Re-granting the same pair overwrites the level, keeps CreatedAt,
	// and never yields a second row.
	regrant := TestShare(humidor.ID, grantee.ID)
	regrant.Level = "edit"
	regrant.GrantedBy = owner.ID
	if err := s.UpsertShare(ctx, regrant); err != nil {
		t.Fatalf("UpsertShare overwrite failed: %v", err)
	}
	got, err = s.GetShare(ctx, humidor.ID, grantee.ID)
	if err != nil {
		t.Fatalf("GetShare after overwrite failed: %v", err)
	}
	if got.Level != "edit" {
		t.Errorf("expected level edit after overwrite, got %q", got.Level)
	}
	if !got.CreatedAt.Equal(share.CreatedAt) {
		t.Errorf("expected original CreatedAt kept, got %v want %v", got.CreatedAt, share.CreatedAt)
	}

	second := TestShare(humidor.ID, other.ID)
	second.GrantedBy = owner.ID
	second.CreatedAt = time.Now().UTC()
	if err := s.UpsertShare(ctx, second); err != nil {
		t.Fatalf("UpsertShare second grantee failed: %v", err)
	}

	// Container listing is oldest first
	shares, err := s.ListSharesByContainer(ctx, humidor.ID)
	if err != nil {
		t.Fatalf("ListSharesByContainer failed: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if shares[0].GranteeUserID != grantee.ID {
		t.Errorf("expected oldest grant first")
	}

	// Grantee listing
	incoming, err := s.ListSharesByGrantee(ctx, grantee.ID)
	if err != nil {
		t.Fatalf("ListSharesByGrantee failed: %v", err)
	}
	if len(incoming) != 1 || incoming[0].ContainerID != humidor.ID {
		t.Errorf("expected one incoming share, got %d", len(incoming))
	}

	// Revoke
	if err := s.DeleteShare(ctx, humidor.ID, grantee.ID); err != nil {
		t.Fatalf("DeleteShare failed: %v", err)
	}
	if _, err := s.GetShare(ctx, humidor.ID, grantee.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}
	if err := s.DeleteShare(ctx, humidor.ID, grantee.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound revoking twice, got %v", err)
	}

	for _, u := range []*store.User{owner, grantee, other} {
		s.DeleteUser(ctx, u.ID)
	}
}

// TestTokenLifecycle tests token create, list, update and bulk revoke.
func TestTokenLifecycle(t *testing.T, ctx context.Context, s store.Store) {
	owner := TestUser("token-owner")
	if err := s.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	humidor := TestHumidor(owner.ID)
	if err := s.CreateHumidor(ctx, humidor); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	older := TestToken(humidor.ID, owner.ID)
	older.CreatedAt = base
	newer := TestToken(humidor.ID, owner.ID)
	newer.CreatedAt = base.Add(time.Minute)
	expiry := base.Add(30 * 24 * time.Hour)
	newer.ExpiresAt = &expiry
	newer.IncludeFavorites = true

	if err := s.CreateToken(ctx, older); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if err := s.CreateToken(ctx, newer); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	got, err := s.GetToken(ctx, newer.TokenID)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, got.ExpiresAt)
	}
	if !got.IncludeFavorites {
		t.Error("expected include_favorites to round-trip")
	}

	// Listing is newest first and includes every token
	tokens, err := s.ListTokensByContainer(ctx, humidor.ID)
	if err != nil {
		t.Fatalf("ListTokensByContainer failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].TokenID != newer.TokenID {
		t.Errorf("expected newest token first")
	}

	// Single revoke through update
	older.Revoked = true
	if err := s.UpdateToken(ctx, older); err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}
	got, _ = s.GetToken(ctx, older.TokenID)
	if !got.Revoked {
		t.Error("expected token revoked")
	}

	// Revoked tokens stay listed
	tokens, _ = s.ListTokensByContainer(ctx, humidor.ID)
	if len(tokens) != 2 {
		t.Errorf("expected revoked token to stay listed, got %d", len(tokens))
	}

	// Bulk revoke flips only the remaining active token
	n, err := s.RevokeTokensByContainer(ctx, humidor.ID)
	if err != nil {
		t.Fatalf("RevokeTokensByContainer failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 token revoked, got %d", n)
	}
	n, err = s.RevokeTokensByContainer(ctx, humidor.ID)
	if err != nil {
		t.Fatalf("RevokeTokensByContainer repeat failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 tokens revoked on repeat, got %d", n)
	}

	s.DeleteUser(ctx, owner.ID)
}

// TestHumidorCascade verifies humidor deletion removes dependents.
func TestHumidorCascade(t *testing.T, ctx context.Context, s store.Store) {
	owner := TestUser("cascade-owner")
	grantee := TestUser("cascade-grantee")
	for _, u := range []*store.User{owner, grantee} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	humidor := TestHumidor(owner.ID)
	if err := s.CreateHumidor(ctx, humidor); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}
	cigar := TestCigar(owner.ID, humidor.ID)
	if err := s.CreateCigar(ctx, cigar); err != nil {
		t.Fatalf("CreateCigar failed: %v", err)
	}
	share := TestShare(humidor.ID, grantee.ID)
	share.GrantedBy = owner.ID
	if err := s.UpsertShare(ctx, share); err != nil {
		t.Fatalf("UpsertShare failed: %v", err)
	}
	token := TestToken(humidor.ID, owner.ID)
	if err := s.CreateToken(ctx, token); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if err := s.DeleteHumidor(ctx, humidor.ID); err != nil {
		t.Fatalf("DeleteHumidor failed: %v", err)
	}

	if _, err := s.GetCigar(ctx, cigar.ID); err != store.ErrNotFound {
		t.Errorf("expected cigar gone, got %v", err)
	}
	if _, err := s.GetShare(ctx, humidor.ID, grantee.ID); err != store.ErrNotFound {
		t.Errorf("expected share gone, got %v", err)
	}
	if _, err := s.GetToken(ctx, token.TokenID); err != store.ErrNotFound {
		t.Errorf("expected token gone, got %v", err)
	}

	for _, u := range []*store.User{owner, grantee} {
		s.DeleteUser(ctx, u.ID)
	}
}

// TestUserCascade verifies user deletion removes owned data and
// incoming grants.
func TestUserCascade(t *testing.T, ctx context.Context, s store.Store) {
	victim := TestUser("cascade-victim")
	friend := TestUser("cascade-friend")
	for _, u := range []*store.User{victim, friend} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	// Victim owns a humidor with a cigar and a wish-list item.
	owned := TestHumidor(victim.ID)
	if err := s.CreateHumidor(ctx, owned); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}
	contained := TestCigar(victim.ID, owned.ID)
	wish := TestCigar(victim.ID, "")
	for _, c := range []*store.Cigar{contained, wish} {
		if err := s.CreateCigar(ctx, c); err != nil {
			t.Fatalf("CreateCigar failed: %v", err)
		}
	}

	// Friend owns a humidor shared with the victim.
	friendly := TestHumidor(friend.ID)
	if err := s.CreateHumidor(ctx, friendly); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}
	incoming := TestShare(friendly.ID, victim.ID)
	incoming.GrantedBy = friend.ID
	if err := s.UpsertShare(ctx, incoming); err != nil {
		t.Fatalf("UpsertShare failed: %v", err)
	}

	if err := s.DeleteUser(ctx, victim.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if _, err := s.GetHumidor(ctx, owned.ID); err != store.ErrNotFound {
		t.Errorf("expected owned humidor gone, got %v", err)
	}
	if _, err := s.GetCigar(ctx, contained.ID); err != store.ErrNotFound {
		t.Errorf("expected contained cigar gone, got %v", err)
	}
	if _, err := s.GetCigar(ctx, wish.ID); err != store.ErrNotFound {
		t.Errorf("expected wish-list item gone, got %v", err)
	}
	if _, err := s.GetShare(ctx, friendly.ID, victim.ID); err != store.ErrNotFound {
		t.Errorf("expected incoming share gone, got %v", err)
	}

	// Friend's humidor is untouched.
	if _, err := s.GetHumidor(ctx, friendly.ID); err != nil {
		t.Errorf("expected friend's humidor to survive, got %v", err)
	}

	s.DeleteUser(ctx, friend.ID)
}

// TestTransferAll verifies whole-account ownership transfer.
func TestTransferAll(t *testing.T, ctx context.Context, s store.Store) {
	from := TestUser("transfer-from")
	to := TestUser("transfer-to")
	grantee := TestUser("transfer-grantee")
	for _, u := range []*store.User{from, to, grantee} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	first := TestHumidor(from.ID)
	second := TestHumidor(from.ID)
	for _, h := range []*store.Humidor{first, second} {
		if err := s.CreateHumidor(ctx, h); err != nil {
			t.Fatalf("CreateHumidor failed: %v", err)
		}
	}
	c1 := TestCigar(from.ID, first.ID)
	c2 := TestCigar(from.ID, first.ID)
	c3 := TestCigar(from.ID, second.ID)
	wish := TestCigar(from.ID, "")
	for _, c := range []*store.Cigar{c1, c2, c3, wish} {
		if err := s.CreateCigar(ctx, c); err != nil {
			t.Fatalf("CreateCigar failed: %v", err)
		}
	}
	share := TestShare(first.ID, grantee.ID)
	share.GrantedBy = from.ID
	if err := s.UpsertShare(ctx, share); err != nil {
		t.Fatalf("UpsertShare failed: %v", err)
	}
	token := TestToken(first.ID, from.ID)
	if err := s.CreateToken(ctx, token); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	result, err := s.TransferOwnership(ctx, from.ID, to.ID, "")
	if err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}
	if result.Humidors != 2 {
		t.Errorf("expected 2 humidors transferred, got %d", result.Humidors)
	}
	if result.Cigars != 3 {
		t.Errorf("expected 3 cigars transferred, got %d", result.Cigars)
	}

	// Humidors and contained cigars now belong to the recipient.
	for _, id := range []string{first.ID, second.ID} {
		h, err := s.GetHumidor(ctx, id)
		if err != nil {
			t.Fatalf("GetHumidor failed: %v", err)
		}
		if h.OwnerID != to.ID {
			t.Errorf("expected owner %q, got %q", to.ID, h.OwnerID)
		}
	}
	got, _ := s.GetCigar(ctx, c1.ID)
	if got.OwnerID != to.ID {
		t.Errorf("expected cigar owner %q, got %q", to.ID, got.OwnerID)
	}
	if got.HumidorID == nil || *got.HumidorID != first.ID {
		t.Error("expected cigar to stay in its humidor")
	}

	// Wish-list items stay with the original user.
	gotWish, err := s.GetCigar(ctx, wish.ID)
	if err != nil {
		t.Fatalf("GetCigar wish failed: %v", err)
	}
	if gotWish.OwnerID != from.ID {
		t.Errorf("expected wish-list item to stay with %q, got %q", from.ID, gotWish.OwnerID)
	}

	// Shares on moved humidors are dropped, public tokens survive.
	if _, err := s.GetShare(ctx, first.ID, grantee.ID); err != store.ErrNotFound {
		t.Errorf("expected share dropped, got %v", err)
	}
	if _, err := s.GetToken(ctx, token.TokenID); err != nil {
		t.Errorf("expected token to survive transfer, got %v", err)
	}

	// Transferring again moves nothing.
	result, err = s.TransferOwnership(ctx, from.ID, to.ID, "")
	if err != nil {
		t.Fatalf("repeat TransferOwnership failed: %v", err)
	}
	if result.Humidors != 0 || result.Cigars != 0 {
		t.Errorf("expected nothing left to transfer, got %+v", result)
	}

	for _, u := range []*store.User{from, to, grantee} {
		s.DeleteUser(ctx, u.ID)
	}
}

// TestTransferSingle verifies transfer scoped to one humidor.
func TestTransferSingle(t *testing.T, ctx context.Context, s store.Store) {
	from := TestUser("single-from")
	to := TestUser("single-to")
	for _, u := range []*store.User{from, to} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	moved := TestHumidor(from.ID)
	kept := TestHumidor(from.ID)
	for _, h := range []*store.Humidor{moved, kept} {
		if err := s.CreateHumidor(ctx, h); err != nil {
			t.Fatalf("CreateHumidor failed: %v", err)
		}
	}
	inMoved := TestCigar(from.ID, moved.ID)
	inKept := TestCigar(from.ID, kept.ID)
	for _, c := range []*store.Cigar{inMoved, inKept} {
		if err := s.CreateCigar(ctx, c); err != nil {
			t.Fatalf("CreateCigar failed: %v", err)
		}
	}

	result, err := s.TransferOwnership(ctx, from.ID, to.ID, moved.ID)
	if err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}
	if result.Humidors != 1 || result.Cigars != 1 {
		t.Errorf("expected 1 humidor and 1 cigar, got %+v", result)
	}

	h, _ := s.GetHumidor(ctx, moved.ID)
	if h.OwnerID != to.ID {
		t.Errorf("expected moved humidor owned by %q, got %q", to.ID, h.OwnerID)
	}
	h, _ = s.GetHumidor(ctx, kept.ID)
	if h.OwnerID != from.ID {
		t.Errorf("expected kept humidor owned by %q, got %q", from.ID, h.OwnerID)
	}
	c, _ := s.GetCigar(ctx, inKept.ID)
	if c.OwnerID != from.ID {
		t.Errorf("expected kept cigar owned by %q, got %q", from.ID, c.OwnerID)
	}

	for _, u := range []*store.User{from, to} {
		s.DeleteUser(ctx, u.ID)
	}
}

// TestTransferNotFound verifies named-humidor failure modes.
func TestTransferNotFound(t *testing.T, ctx context.Context, s store.Store) {
	from := TestUser("notfound-from")
	to := TestUser("notfound-to")
	stranger := TestUser("notfound-stranger")
	for _, u := range []*store.User{from, to, stranger} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	notOwned := TestHumidor(stranger.ID)
	if err := s.CreateHumidor(ctx, notOwned); err != nil {
		t.Fatalf("CreateHumidor failed: %v", err)
	}

	// Humidor that does not exist
	if _, err := s.TransferOwnership(ctx, from.ID, to.ID, store.NewID()); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound for missing humidor, got %v", err)
	}

	// Humidor owned by someone else
	if _, err := s.TransferOwnership(ctx, from.ID, to.ID, notOwned.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign humidor, got %v", err)
	}

	// Nothing moved
	h, _ := s.GetHumidor(ctx, notOwned.ID)
	if h.OwnerID != stranger.ID {
		t.Errorf("expected humidor untouched, owner %q", h.OwnerID)
	}

	for _, u := range []*store.User{from, to, stranger} {
		s.DeleteUser(ctx, u.ID)
	}
}
