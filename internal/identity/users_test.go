package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/validate"
)

func newUsersService(t *testing.T) (*identity.Users, store.Store) {
	t.Helper()
	s := newTestStore(t)
	return identity.NewUsers(s, identity.NewUserAuth(4)), s
}

func TestUsers_Create(t *testing.T) {
	ctx := context.Background()
	users, s := newUsersService(t)

	created, err := users.Create(ctx, identity.NewUser{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "password1",
		FullName: "Alice Example",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Errorf("expected lowercased email, got %q", created.Email)
	}
	if created.PasswordHash == "password1" || created.PasswordHash == "" {
		t.Error("expected a password hash")
	}
	if !created.IsActive {
		t.Error("expected new account active")
	}

	if _, err := s.GetUserByUsername(ctx, "alice"); err != nil {
		t.Errorf("expected user persisted, got %v", err)
	}

	// Duplicate username
	_, err = users.Create(ctx, identity.NewUser{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password1",
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUsers_CreateValidation(t *testing.T) {
	ctx := context.Background()
	users, _ := newUsersService(t)

	cases := []struct {
		name string
		in   identity.NewUser
	}{
		{"short username", identity.NewUser{Username: "ab", Email: "a@b.com", Password: "password1"}},
		{"bad username chars", identity.NewUser{Username: "not ok!", Email: "a@b.com", Password: "password1"}},
		{"bad email", identity.NewUser{Username: "bob", Email: "nodomain", Password: "password1"}},
		{"short password", identity.NewUser{Username: "bob", Email: "a@b.com", Password: "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := users.Create(ctx, tc.in)
			var vErr *validate.Error
			if !errors.As(err, &vErr) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUsers_AdminGuards(t *testing.T) {
	ctx := context.Background()
	users, _ := newUsersService(t)

	admin, err := users.Create(ctx, identity.NewUser{
		Username: "root", Email: "root@example.com", Password: "password1", IsAdmin: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	falseVal := false

	// Admins cannot demote themselves.
	_, err = users.AdminUpdate(ctx, admin, admin.ID, identity.UserPatch{IsAdmin: &falseVal})
	if !errors.Is(err, identity.ErrSelfChange) {
		t.Errorf("expected ErrSelfChange for self-demotion, got %v", err)
	}

	// Admins cannot deactivate themselves.
	_, err = users.AdminUpdate(ctx, admin, admin.ID, identity.UserPatch{IsActive: &falseVal})
	if !errors.Is(err, identity.ErrSelfChange) {
		t.Errorf("expected ErrSelfChange for self-deactivation, got %v", err)
	}

	// Admins cannot delete themselves.
	if err := users.AdminDelete(ctx, admin, admin.ID); !errors.Is(err, identity.ErrSelfChange) {
		t.Errorf("expected ErrSelfChange for self-deletion, got %v", err)
	}

	// With a second admin, demoting one of them works.
	second, err := users.Create(ctx, identity.NewUser{
		Username: "backup", Email: "backup@example.com", Password: "password1", IsAdmin: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := users.AdminUpdate(ctx, admin, second.ID, identity.UserPatch{IsAdmin: &falseVal})
	if err != nil {
		t.Fatalf("expected demotion to succeed with two admins, got %v", err)
	}
	if updated.IsAdmin {
		t.Error("expected target demoted")
	}

	// The last active admin is protected even from another admin row.
	dormant, err := users.Create(ctx, identity.NewUser{
		Username: "dormant", Email: "dormant@example.com", Password: "password1", IsAdmin: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := users.AdminUpdate(ctx, admin, dormant.ID, identity.UserPatch{IsActive: &falseVal}); err != nil {
		t.Fatal(err)
	}
	_, err = users.AdminUpdate(ctx, dormant, admin.ID, identity.UserPatch{IsAdmin: &falseVal})
	if !errors.Is(err, identity.ErrLastAdmin) {
		t.Errorf("expected ErrLastAdmin, got %v", err)
	}
	if err := users.AdminDelete(ctx, dormant, admin.ID); !errors.Is(err, identity.ErrLastAdmin) {
		t.Errorf("expected ErrLastAdmin on delete, got %v", err)
	}

	// Deleting a regular user is fine.
	if err := users.AdminDelete(ctx, admin, second.ID); err != nil {
		t.Errorf("expected delete to succeed, got %v", err)
	}
}

func TestUsers_AdminUpdateMissing(t *testing.T) {
	ctx := context.Background()
	users, _ := newUsersService(t)

	admin, err := users.Create(ctx, identity.NewUser{
		Username: "root", Email: "root@example.com", Password: "password1", IsAdmin: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = users.AdminUpdate(ctx, admin, store.NewID(), identity.UserPatch{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUsers_ChangePassword(t *testing.T) {
	ctx := context.Background()
	users, s := newUsersService(t)
	auth := identity.NewUserAuth(4)

	user, err := users.Create(ctx, identity.NewUser{
		Username: "carol", Email: "carol@example.com", Password: "oldpassword",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Wrong current password
	err = users.ChangePassword(ctx, user.ID, "not-it", "newpassword")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	// Success
	if err := users.ChangePassword(ctx, user.ID, "oldpassword", "newpassword"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := auth.Authenticate(ctx, s, "carol", "newpassword"); err != nil {
		t.Errorf("expected new password to authenticate, got %v", err)
	}
	if _, err := auth.Authenticate(ctx, s, "carol", "oldpassword"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected old password rejected, got %v", err)
	}
}

func TestUsers_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	users, _ := newUsersService(t)

	user, err := users.Create(ctx, identity.NewUser{
		Username: "dave", Email: "dave@example.com", Password: "password1",
	})
	if err != nil {
		t.Fatal(err)
	}

	email := "Dave@NewDomain.com"
	name := "Dave Renamed"
	updated, err := users.UpdateProfile(ctx, user.ID, &email, &name)
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Email != "dave@newdomain.com" {
		t.Errorf("expected lowercased email, got %q", updated.Email)
	}
	if updated.FullName != "Dave Renamed" {
		t.Errorf("expected renamed, got %q", updated.FullName)
	}

	bad := "nodomain"
	_, err = users.UpdateProfile(ctx, user.ID, &bad, nil)
	var vErr *validate.Error
	if !errors.As(err, &vErr) {
		t.Errorf("expected validation error, got %v", err)
	}
}
