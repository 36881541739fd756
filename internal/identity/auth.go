package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vitolahq/vitola/internal/store"
)

// bcrypt ignores everything past 72 bytes, so longer inputs are
// rejected instead of silently truncated.
const maxPasswordBytes = 72

// UserAuth handles password hashing and verification.
type UserAuth struct {
	cost int // bcrypt cost factor
}

// NewUserAuth creates a new UserAuth with the given bcrypt cost.
// Cost should be at least 10 for production.
func NewUserAuth(cost int) *UserAuth {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &UserAuth{cost: cost}
}

// HashPassword creates a bcrypt hash of the password.
func (a *UserAuth) HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if the password matches the hash.
func (a *UserAuth) VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Authenticate verifies credentials against the store. The identifier
// may be a username or an email address. Unknown identifiers and wrong
// passwords both return ErrInvalidCredentials; deactivated accounts
// are rejected with ErrUserDisabled before the password is checked.
func (a *UserAuth) Authenticate(ctx context.Context, users store.UserStore, identifier, password string) (*store.User, error) {
	user, err := users.GetUserByUsername(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) && strings.Contains(identifier, "@") {
		user, err = users.GetUserByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	if err := a.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
