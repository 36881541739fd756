// Package sharing manages per-user access grants on humidors.
// Grants are keyed by (humidor, grantee); re-granting overwrites the
// level in place, so a pair never holds two grants at once.
package sharing

import (
	"context"
	"errors"
	"time"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/store"
)

var (
	// ErrGranteeNotFound covers both an unknown user id and a
	// deactivated account.
	ErrGranteeNotFound = errors.New("grantee not found or inactive")
	// ErrSelfShare rejects granting access to yourself.
	ErrSelfShare = errors.New("cannot share a humidor with yourself")
	// ErrOwnerShare rejects granting access to the humidor's owner,
	// who already holds full access.
	ErrOwnerShare = errors.New("cannot share a humidor with its owner")
)

// UserInfo is the user projection embedded in share responses.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Grant is one share enriched with the users on both ends.
type Grant struct {
	ContainerID string    `json:"container_id"`
	SharedWith  UserInfo  `json:"shared_with_user"`
	SharedBy    UserInfo  `json:"shared_by_user"`
	Level       string    `json:"permission_level"`
	CreatedAt   time.Time `json:"created_at"`
}

// SharedHumidor is a humidor as seen by a grantee.
type SharedHumidor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       UserInfo  `json:"owner"`
	Level       string    `json:"permission_level"`
	SharedAt    time.Time `json:"shared_at"`
	CigarCount  int       `json:"cigar_count"`
}

// Service implements the share registry operations.
type Service struct {
	users    store.UserStore
	humidors store.HumidorStore
	cigars   store.CigarStore
	shares   store.ShareStore
}

// NewService creates a sharing service.
func NewService(users store.UserStore, humidors store.HumidorStore, cigars store.CigarStore, shares store.ShareStore) *Service {
	return &Service{
		users:    users,
		humidors: humidors,
		cigars:   cigars,
		shares:   shares,
	}
}

// Grant creates or overwrites the grant for (humidor, grantee).
// The grantee must be an existing active account and must not be the
// actor or the humidor's owner.
func (s *Service) Grant(ctx context.Context, humidor *store.Humidor, actor *store.User, granteeID string, level access.Level) (*Grant, error) {
	if granteeID == actor.ID {
		return nil, ErrSelfShare
	}
	if granteeID == humidor.OwnerID {
		return nil, ErrOwnerShare
	}

	grantee, err := s.users.GetUser(ctx, granteeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGranteeNotFound
		}
		return nil, err
	}
	if !grantee.IsActive {
		return nil, ErrGranteeNotFound
	}

	share := &store.Share{
		ContainerID:   humidor.ID,
		GranteeUserID: granteeID,
		Level:         level.String(),
		GrantedBy:     actor.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.shares.UpsertShare(ctx, share); err != nil {
		return nil, err
	}

	// Re-read so an overwrite reports the original grant time.
	stored, err := s.shares.GetShare(ctx, humidor.ID, granteeID)
	if err != nil {
		return nil, err
	}
	return &Grant{
		ContainerID: stored.ContainerID,
		SharedWith:  userInfo(grantee),
		SharedBy:    userInfo(actor),
		Level:       stored.Level,
		CreatedAt:   stored.CreatedAt,
	}, nil
}

// UpdateLevel changes the level of an existing grant. Unlike Grant it
// fails with store.ErrNotFound when the pair holds no grant.
func (s *Service) UpdateLevel(ctx context.Context, humidor *store.Humidor, actor *store.User, granteeID string, level access.Level) (*Grant, error) {
	existing, err := s.shares.GetShare(ctx, humidor.ID, granteeID)
	if err != nil {
		return nil, err
	}

	existing.Level = level.String()
	existing.GrantedBy = actor.ID
	if err := s.shares.UpsertShare(ctx, existing); err != nil {
		return nil, err
	}

	grantee, err := s.users.GetUser(ctx, granteeID)
	if err != nil {
		return nil, err
	}
	return &Grant{
		ContainerID: existing.ContainerID,
		SharedWith:  userInfo(grantee),
		SharedBy:    userInfo(actor),
		Level:       existing.Level,
		CreatedAt:   existing.CreatedAt,
	}, nil
}

// Revoke removes the grant for (container, grantee).
// Returns store.ErrNotFound when no grant exists.
func (s *Service) Revoke(ctx context.Context, containerID, granteeID string) error {
	return s.shares.DeleteShare(ctx, containerID, granteeID)
}

// List returns the container's grants, oldest first, with both users
// resolved. Grants whose grantee row has vanished are skipped.
func (s *Service) List(ctx context.Context, containerID string) ([]*Grant, error) {
	shares, err := s.shares.ListSharesByContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}

	grants := make([]*Grant, 0, len(shares))
	for _, share := range shares {
		grantee, err := s.users.GetUser(ctx, share.GranteeUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		grants = append(grants, &Grant{
			ContainerID: share.ContainerID,
			SharedWith:  userInfo(grantee),
			SharedBy:    s.issuerInfo(ctx, share.GrantedBy),
			Level:       share.Level,
			CreatedAt:   share.CreatedAt,
		})
	}
	return grants, nil
}

// SharedWithUser returns the humidors shared with the user, enriched
// with owner and cigar count, in grant order.
func (s *Service) SharedWithUser(ctx context.Context, userID string) ([]*SharedHumidor, error) {
	shares, err := s.shares.ListSharesByGrantee(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]*SharedHumidor, 0, len(shares))
	for _, share := range shares {
		humidor, err := s.humidors.GetHumidor(ctx, share.ContainerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		owner, err := s.users.GetUser(ctx, humidor.OwnerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		count, err := s.cigars.CountCigarsByHumidor(ctx, humidor.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, &SharedHumidor{
			ID:          humidor.ID,
			Name:        humidor.Name,
			Description: humidor.Description,
			Owner:       userInfo(owner),
			Level:       share.Level,
			SharedAt:    share.CreatedAt,
			CigarCount:  count,
		})
	}
	return result, nil
}

func userInfo(u *store.User) UserInfo {
	return UserInfo{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	}
}

// issuerInfo resolves the granting user, tolerating a deleted account.
func (s *Service) issuerInfo(ctx context.Context, userID string) UserInfo {
	issuer, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return UserInfo{ID: userID}
	}
	return userInfo(issuer)
}
