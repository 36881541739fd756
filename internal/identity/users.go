package identity

import (
	"context"
	"strings"
	"time"

	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/validate"
)

// Users manages user accounts on behalf of the admin endpoints and the
// profile endpoints.
type Users struct {
	users store.UserStore
	auth  *UserAuth
}

// NewUsers creates a user management service.
func NewUsers(users store.UserStore, auth *UserAuth) *Users {
	return &Users{users: users, auth: auth}
}

// NewUser describes an account to create.
type NewUser struct {
	Username string
	Email    string
	Password string
	FullName string
	IsAdmin  bool
}

// UserPatch describes an admin edit. Nil fields stay unchanged.
type UserPatch struct {
	Email    *string
	FullName *string
	Password *string
	IsAdmin  *bool
	IsActive *bool
}

// Create validates and creates an account. Duplicate usernames or
// emails surface as store.ErrAlreadyExists.
func (u *Users) Create(ctx context.Context, in NewUser) (*store.User, error) {
	if err := validate.Username(in.Username); err != nil {
		return nil, err
	}
	if err := validate.Email(in.Email); err != nil {
		return nil, err
	}
	if err := validate.Password(in.Password); err != nil {
		return nil, err
	}
	if err := validate.Optional("full_name", in.FullName, 100); err != nil {
		return nil, err
	}

	hash, err := u.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &store.User{
		ID:           store.NewID(),
		Username:     in.Username,
		Email:        strings.ToLower(in.Email),
		FullName:     in.FullName,
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AdminUpdate applies an admin edit to the target account.
// Admins cannot demote or deactivate themselves, and the last active
// admin cannot be demoted or deactivated by anyone.
func (u *Users) AdminUpdate(ctx context.Context, actor *store.User, targetID string, patch UserPatch) (*store.User, error) {
	target, err := u.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	demoting := patch.IsAdmin != nil && !*patch.IsAdmin
	deactivating := patch.IsActive != nil && !*patch.IsActive

	if actor.ID == target.ID && (demoting || deactivating) {
		return nil, ErrSelfChange
	}
	if target.IsAdmin && target.IsActive && (demoting || deactivating) {
		admins, err := u.countActiveAdmins(ctx)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, ErrLastAdmin
		}
	}

	if patch.Email != nil {
		if err := validate.Email(*patch.Email); err != nil {
			return nil, err
		}
		target.Email = strings.ToLower(*patch.Email)
	}
	if patch.FullName != nil {
		if err := validate.Optional("full_name", *patch.FullName, 100); err != nil {
			return nil, err
		}
		target.FullName = *patch.FullName
	}
	if patch.Password != nil {
		if err := validate.Password(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := u.auth.HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		target.PasswordHash = hash
	}
	if patch.IsAdmin != nil {
		target.IsAdmin = *patch.IsAdmin
	}
	if patch.IsActive != nil {
		target.IsActive = *patch.IsActive
	}
	target.UpdatedAt = time.Now().UTC()

	if err := u.users.UpdateUser(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// AdminDelete removes the target account and everything it owns.
// Admins cannot delete themselves or the last active admin.
func (u *Users) AdminDelete(ctx context.Context, actor *store.User, targetID string) error {
	if actor.ID == targetID {
		return ErrSelfChange
	}
	target, err := u.users.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin && target.IsActive {
		admins, err := u.countActiveAdmins(ctx)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	return u.users.DeleteUser(ctx, targetID)
}

// UpdateProfile applies a self-service edit to the caller's account.
func (u *Users) UpdateProfile(ctx context.Context, userID string, email, fullName *string) (*store.User, error) {
	user, err := u.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if email != nil {
		if err := validate.Email(*email); err != nil {
			return nil, err
		}
		user.Email = strings.ToLower(*email)
	}
	if fullName != nil {
		if err := validate.Optional("full_name", *fullName, 100); err != nil {
			return nil, err
		}
		user.FullName = *fullName
	}
	user.UpdatedAt = time.Now().UTC()

	if err := u.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password and stores a new one.
// The caller is responsible for invalidating other sessions afterwards.
func (u *Users) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := u.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.auth.VerifyPassword(user.PasswordHash, current); err != nil {
		return err
	}
	if err := validate.Password(next); err != nil {
		return err
	}
	hash, err := u.auth.HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	return u.users.UpdateUser(ctx, user)
}

func (u *Users) countActiveAdmins(ctx context.Context) (int, error) {
	all, _, err := u.users.ListUsers(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, user := range all {
		if user.IsAdmin && user.IsActive {
			count++
		}
	}
	return count, nil
}
