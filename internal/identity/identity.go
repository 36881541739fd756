// Package identity provides authentication, session handling, user
// management and startup seeding.
package identity

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown identifier and
	// for a wrong password alike, so the response never reveals which
	// accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserDisabled rejects logins to deactivated accounts. The
	// account's existence is already known to its owner, so this one
	// is distinguishable.
	ErrUserDisabled = errors.New("account is disabled")

	// ErrPasswordTooLong rejects passwords above the bcrypt input limit.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// ErrLastAdmin guards the final active administrator against
	// demotion, deactivation and deletion.
	ErrLastAdmin = errors.New("cannot remove the last admin")

	// ErrSelfChange guards admins against locking themselves out.
	ErrSelfChange = errors.New("cannot change own admin status or delete self")
)
