// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// NewID returns a fresh random identifier (UUIDv4 string). Public link
// token ids use the same generator: random, never derived from a
// container id or a sequence.
func NewID() string {
	return uuid.NewString()
}

// Driver defines the lifecycle interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (json, sqlite).
	Name() string

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// User is an account. PasswordHash stays out of API responses because
// handlers project users into response structs; it must keep a JSON tag
// so the json driver persists it.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Humidor is a container of cigars, owned by exactly one user.
// Ownership changes only through the transfer operation.
type Humidor struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	OwnerID        string    `json:"owner_id" gorm:"index"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Capacity       *int      `json:"capacity,omitempty"`
	TargetHumidity *int      `json:"target_humidity,omitempty"`
	Location       string    `json:"location,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Cigar is an inventory item. HumidorID is nil for wish-list items,
// which are owned directly by the user. For contained cigars OwnerID
// always matches the humidor's owner.
type Cigar struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	OwnerID      string     `json:"owner_id" gorm:"index"`
	HumidorID    *string    `json:"humidor_id,omitempty" gorm:"index"`
	Brand        string     `json:"brand"`
	Name         string     `json:"name"`
	Size         string     `json:"size,omitempty"`
	Strength     string     `json:"strength,omitempty"`
	Origin       string     `json:"origin,omitempty"`
	Wrapper      string     `json:"wrapper,omitempty"`
	Binder       string     `json:"binder,omitempty"`
	Filler       string     `json:"filler,omitempty"`
	RingGauge    *int       `json:"ring_gauge,omitempty"`
	LengthInches *float64   `json:"length_inches,omitempty"`
	Price        *float64   `json:"price,omitempty"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	Quantity     int        `json:"quantity"`
	Notes        string     `json:"notes,omitempty"`
	RetailLink   string     `json:"retail_link,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	IsFavorite   bool       `json:"is_favorite"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Share grants a non-owner user a permission level on one humidor.
// At most one row per (container, grantee) pair; re-granting overwrites
// the level and keeps the original CreatedAt. GrantedBy records the
// user who issued the grant, for audit.
type Share struct {
	ContainerID   string    `json:"container_id" gorm:"primaryKey"`
	GranteeUserID string    `json:"grantee_user_id" gorm:"primaryKey"`
	Level         string    `json:"permission_level" gorm:"column:permission_level"`
	GrantedBy     string    `json:"granted_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// PublicToken is an anonymous, revocable read grant on one humidor.
// A nil ExpiresAt means the token never expires. Revocation is a
// persisted flag; expiry is always computed at read time.
type PublicToken struct {
	TokenID          string     `json:"token_id" gorm:"primaryKey"`
	ContainerID      string     `json:"container_id" gorm:"index"`
	CreatedBy        string     `json:"created_by"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	IncludeFavorites bool       `json:"include_favorites"`
	IncludeWishList  bool       `json:"include_wish_list"`
	Label            string     `json:"label,omitempty"`
	Revoked          bool       `json:"revoked"`
	CreatedAt        time.Time  `json:"created_at"`
}

// UsableAt reports whether the token grants access at the given instant.
func (t *PublicToken) UsableAt(now time.Time) bool {
	if t.Revoked {
		return false
	}
	if t.ExpiresAt == nil {
		return true
	}
	return now.Before(*t.ExpiresAt)
}

// UserStore defines operations for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// GetUserByEmail matches case-insensitively; stored emails are
	// lowercased by the identity service.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers returns a page of users ordered by CreatedAt descending,
	// plus the total count. A limit of zero or less returns everything
	// past the offset.
	ListUsers(ctx context.Context, offset, limit int) ([]*User, int, error)
	UpdateUser(ctx context.Context, user *User) error
	// DeleteUser removes the user and cascades: owned humidors with their
	// cigars, shares and tokens, wish-list items, and shares granted to
	// the user.
	DeleteUser(ctx context.Context, id string) error
}

// HumidorStore defines operations for humidor persistence.
type HumidorStore interface {
	CreateHumidor(ctx context.Context, humidor *Humidor) error
	GetHumidor(ctx context.Context, id string) (*Humidor, error)
	// ListHumidorsByOwner returns the owner's humidors ordered by
	// CreatedAt ascending.
	ListHumidorsByOwner(ctx context.Context, ownerID string) ([]*Humidor, error)
	UpdateHumidor(ctx context.Context, humidor *Humidor) error
	// DeleteHumidor removes the humidor and cascades its cigars, shares
	// and public tokens.
	DeleteHumidor(ctx context.Context, id string) error
}

// CigarStore defines operations for cigar persistence.
type CigarStore interface {
	CreateCigar(ctx context.Context, cigar *Cigar) error
	GetCigar(ctx context.Context, id string) (*Cigar, error)
	// ListCigarsByHumidor returns the humidor's cigars ordered by name.
	ListCigarsByHumidor(ctx context.Context, humidorID string) ([]*Cigar, error)
	// ListWishList returns the user's container-less cigars ordered by name.
	ListWishList(ctx context.Context, ownerID string) ([]*Cigar, error)
	CountCigarsByHumidor(ctx context.Context, humidorID string) (int, error)
	UpdateCigar(ctx context.Context, cigar *Cigar) error
	DeleteCigar(ctx context.Context, id string) error
}

// ShareStore defines operations for share persistence.
type ShareStore interface {
	// UpsertShare inserts the share or, if the (container, grantee) pair
	// exists, overwrites its level and granted-by while keeping the
	// original CreatedAt. Atomic on the pair.
	UpsertShare(ctx context.Context, share *Share) error
	GetShare(ctx context.Context, containerID, granteeID string) (*Share, error)
	// DeleteShare removes the pair's share; ErrNotFound when absent.
	DeleteShare(ctx context.Context, containerID, granteeID string) error
	// ListSharesByContainer returns shares ordered by CreatedAt ascending.
	ListSharesByContainer(ctx context.Context, containerID string) ([]*Share, error)
	ListSharesByGrantee(ctx context.Context, granteeID string) ([]*Share, error)
}

// TokenStore defines operations for public token persistence.
type TokenStore interface {
	CreateToken(ctx context.Context, token *PublicToken) error
	GetToken(ctx context.Context, tokenID string) (*PublicToken, error)
	// ListTokensByContainer returns all tokens for the container,
	// revoked and expired included, ordered by CreatedAt descending.
	ListTokensByContainer(ctx context.Context, containerID string) ([]*PublicToken, error)
	UpdateToken(ctx context.Context, token *PublicToken) error
	// RevokeTokensByContainer sets revoked on every token of the
	// container in one atomic operation and returns how many flipped.
	RevokeTokensByContainer(ctx context.Context, containerID string) (int, error)
}

// TransferResult reports what an ownership transfer moved.
type TransferResult struct {
	Humidors int `json:"humidors_transferred"`
	Cigars   int `json:"cigars_transferred"`
}

// Transferrer moves humidor ownership between users.
type Transferrer interface {
	// TransferOwnership moves the named humidor, or every humidor
	// owned by fromUserID when humidorID is empty, to toUserID.
	// Contained cigars follow their humidor (owner updated, container
	// unchanged) and all shares on moved humidors are deleted. The whole
	// operation is a single all-or-nothing unit. Returns ErrNotFound
	// when a named humidor is absent or not owned by fromUserID.
	TransferOwnership(ctx context.Context, fromUserID, toUserID, humidorID string) (TransferResult, error)
}

// Store is the full persistence surface a driver implements.
type Store interface {
	Driver
	UserStore
	HumidorStore
	CigarStore
	ShareStore
	TokenStore
	Transferrer
}
