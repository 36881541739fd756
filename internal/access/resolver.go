package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitolahq/vitola/internal/store"
)

// Authorization errors. ErrNoAccess covers both a missing container and
// a user with no relationship to it, so handlers cannot leak which of
// the two happened. ErrInsufficient means the user does hold a grant,
// just not a high enough one.
var (
	ErrNoAccess     = errors.New("no access")
	ErrInsufficient = errors.New("insufficient permission")
)

// Resolver computes a user's effective permission level on a humidor.
// Every check reads current records; nothing here is cached, so a
// revocation takes effect on the next request.
type Resolver struct {
	humidors store.HumidorStore
	shares   store.ShareStore
}

// NewResolver creates a resolver over the given stores.
func NewResolver(humidors store.HumidorStore, shares store.ShareStore) *Resolver {
	return &Resolver{humidors: humidors, shares: shares}
}

// Resolve returns the humidor and the user's effective level on it.
// Ownership wins before any share lookup. Returns ErrNoAccess when the
// humidor does not exist or the user has no relationship to it.
func (r *Resolver) Resolve(ctx context.Context, userID, containerID string) (*store.Humidor, Level, error) {
	humidor, err := r.humidors.GetHumidor(ctx, containerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, ErrNoAccess
		}
		return nil, 0, err
	}

	if humidor.OwnerID == userID {
		return humidor, LevelFull, nil
	}

	share, err := r.shares.GetShare(ctx, containerID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, ErrNoAccess
		}
		return nil, 0, err
	}

	level, err := ParseLevel(share.Level)
	if err != nil {
		return nil, 0, fmt.Errorf("stored share %s/%s: %w", containerID, userID, err)
	}
	return humidor, level, nil
}

// Require resolves the user's level and demands at least min.
// Returns ErrInsufficient when a relationship exists below min.
func (r *Resolver) Require(ctx context.Context, userID, containerID string, min Level) (*store.Humidor, Level, error) {
	humidor, level, err := r.Resolve(ctx, userID, containerID)
	if err != nil {
		return nil, 0, err
	}
	if !level.AtLeast(min) {
		return nil, 0, ErrInsufficient
	}
	return humidor, level, nil
}

// RequireOwner demands ownership. A grantee at any level gets
// ErrInsufficient; everyone else gets ErrNoAccess.
func (r *Resolver) RequireOwner(ctx context.Context, userID, containerID string) (*store.Humidor, error) {
	humidor, _, err := r.Resolve(ctx, userID, containerID)
	if err != nil {
		return nil, err
	}
	if humidor.OwnerID != userID {
		return nil, ErrInsufficient
	}
	return humidor, nil
}
