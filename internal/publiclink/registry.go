// Package publiclink manages anonymous share tokens on humidors and
// assembles the read-only view they expose. A token is an unguessable
// id; holding it is the entire credential.
package publiclink

import (
	"context"
	"errors"
	"time"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/validate"
)

// DefaultTTL is the token lifetime when the request names none.
const DefaultTTL = 30 * 24 * time.Hour

// CreateOptions controls a new token.
type CreateOptions struct {
	// ExpiresAt sets an explicit expiry instant. Mutually exclusive
	// with NeverExpires.
	ExpiresAt *time.Time
	// NeverExpires makes the token permanent until revoked.
	NeverExpires     bool
	IncludeFavorites bool
	IncludeWishList  bool
	Label            string
}

// ShareLink is a token as presented to its managing user.
type ShareLink struct {
	TokenID          string     `json:"token_id"`
	ShareURL         string     `json:"share_url"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	IncludeFavorites bool       `json:"include_favorites"`
	IncludeWishList  bool       `json:"include_wish_list"`
	Label            string     `json:"label,omitempty"`
	Revoked          bool       `json:"revoked"`
	Active           bool       `json:"active"`
}

// Registry manages token lifecycle. Every operation authorizes
// through the resolver; managing tokens requires full access on the
// container.
type Registry struct {
	tokens   store.TokenStore
	resolver *access.Resolver
	baseURL  string
}

// NewRegistry creates a token registry. baseURL is the externally
// visible origin used to build share URLs, without a trailing slash.
func NewRegistry(tokens store.TokenStore, resolver *access.Resolver, baseURL string) *Registry {
	return &Registry{
		tokens:   tokens,
		resolver: resolver,
		baseURL:  baseURL,
	}
}

// Create mints a token for the container. Expiry resolution: both
// NeverExpires and ExpiresAt set is invalid; NeverExpires stores no
// expiry; an explicit ExpiresAt must lie in the future; neither means
// now plus DefaultTTL.
func (r *Registry) Create(ctx context.Context, actor *store.User, containerID string, opts CreateOptions) (*ShareLink, error) {
	if _, _, err := r.resolver.Require(ctx, actor.ID, containerID, access.LevelFull); err != nil {
		return nil, err
	}

	if err := validate.Optional("label", opts.Label, 100); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	switch {
	case opts.NeverExpires && opts.ExpiresAt != nil:
		return nil, validate.Failf("expires_at", "cannot be combined with never_expires")
	case opts.NeverExpires:
		expiresAt = nil
	case opts.ExpiresAt != nil:
		if !opts.ExpiresAt.After(now) {
			return nil, validate.Failf("expires_at", "must be in the future")
		}
		t := opts.ExpiresAt.UTC()
		expiresAt = &t
	default:
		t := now.Add(DefaultTTL)
		expiresAt = &t
	}

	token := &store.PublicToken{
		TokenID:          store.NewID(),
		ContainerID:      containerID,
		CreatedBy:        actor.ID,
		ExpiresAt:        expiresAt,
		IncludeFavorites: opts.IncludeFavorites,
		IncludeWishList:  opts.IncludeWishList,
		Label:            opts.Label,
		CreatedAt:        now,
	}
	if err := r.tokens.CreateToken(ctx, token); err != nil {
		return nil, err
	}
	return r.link(token, now), nil
}

// List returns every token of the container, newest first, revoked
// and expired ones included so owners can audit past links.
func (r *Registry) List(ctx context.Context, actor *store.User, containerID string) ([]*ShareLink, error) {
	if _, _, err := r.resolver.Require(ctx, actor.ID, containerID, access.LevelFull); err != nil {
		return nil, err
	}

	tokens, err := r.tokens.ListTokensByContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	links := make([]*ShareLink, 0, len(tokens))
	for _, token := range tokens {
		links = append(links, r.link(token, now))
	}
	return links, nil
}

// RevokeOne revokes a single token. Revoking an already revoked token
// succeeds. An unknown token reports access.ErrNoAccess, the same as a
// container the actor cannot see.
func (r *Registry) RevokeOne(ctx context.Context, actor *store.User, tokenID string) error {
	token, err := r.tokens.GetToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return access.ErrNoAccess
		}
		return err
	}

	if _, _, err := r.resolver.Require(ctx, actor.ID, token.ContainerID, access.LevelFull); err != nil {
		return err
	}

	if token.Revoked {
		return nil
	}
	token.Revoked = true
	return r.tokens.UpdateToken(ctx, token)
}

// RevokeAll revokes every token of the container at once and returns
// how many flipped.
func (r *Registry) RevokeAll(ctx context.Context, actor *store.User, containerID string) (int, error) {
	if _, _, err := r.resolver.Require(ctx, actor.ID, containerID, access.LevelFull); err != nil {
		return 0, err
	}
	return r.tokens.RevokeTokensByContainer(ctx, containerID)
}

func (r *Registry) link(token *store.PublicToken, now time.Time) *ShareLink {
	return &ShareLink{
		TokenID:          token.TokenID,
		ShareURL:         r.baseURL + "/public/humidors/" + token.TokenID,
		ExpiresAt:        token.ExpiresAt,
		CreatedAt:        token.CreatedAt,
		IncludeFavorites: token.IncludeFavorites,
		IncludeWishList:  token.IncludeWishList,
		Label:            token.Label,
		Revoked:          token.Revoked,
		Active:           token.UsableAt(now),
	}
}
