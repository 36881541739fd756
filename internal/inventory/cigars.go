package inventory

import (
	"context"
	"time"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/validate"
)

// CigarInput carries the fields for creating a cigar.
type CigarInput struct {
	Brand        string     `json:"brand"`
	Name         string     `json:"name"`
	Size         string     `json:"size"`
	Strength     string     `json:"strength"`
	Origin       string     `json:"origin"`
	Wrapper      string     `json:"wrapper"`
	Binder       string     `json:"binder"`
	Filler       string     `json:"filler"`
	RingGauge    *int       `json:"ring_gauge"`
	LengthInches *float64   `json:"length_inches"`
	Price        *float64   `json:"price"`
	PurchaseDate *time.Time `json:"purchase_date"`
	Quantity     int        `json:"quantity"`
	Notes        string     `json:"notes"`
	RetailLink   string     `json:"retail_link"`
	ImageURL     string     `json:"image_url"`
}

// CigarPatch updates a cigar. Nil fields are left untouched. A
// non-nil HumidorID moves the cigar; the empty string moves it to the
// owner's wish list.
type CigarPatch struct {
	HumidorID    *string    `json:"humidor_id"`
	Brand        *string    `json:"brand"`
	Name         *string    `json:"name"`
	Size         *string    `json:"size"`
	Strength     *string    `json:"strength"`
	Origin       *string    `json:"origin"`
	Wrapper      *string    `json:"wrapper"`
	Binder       *string    `json:"binder"`
	Filler       *string    `json:"filler"`
	RingGauge    *int       `json:"ring_gauge"`
	LengthInches *float64   `json:"length_inches"`
	Price        *float64   `json:"price"`
	PurchaseDate *time.Time `json:"purchase_date"`
	Quantity     *int       `json:"quantity"`
	Notes        *string    `json:"notes"`
	RetailLink   *string    `json:"retail_link"`
	ImageURL     *string    `json:"image_url"`
}

// AddCigar creates a cigar inside a humidor. Requires edit permission.
// The cigar belongs to the humidor's owner, even when an edit grantee
// adds it.
func (s *Service) AddCigar(ctx context.Context, actorID, humidorID string, in CigarInput) (*store.Cigar, error) {
	if err := validateCigar(in); err != nil {
		return nil, err
	}
	humidor, _, err := s.resolver.Require(ctx, actorID, humidorID, access.LevelEdit)
	if err != nil {
		return nil, err
	}

	cigar := newCigar(humidor.OwnerID, &humidor.ID, in)
	if err := s.cigars.CreateCigar(ctx, cigar); err != nil {
		return nil, err
	}
	return cigar, nil
}

// AddWishListItem creates a container-less cigar on the actor's wish
// list.
func (s *Service) AddWishListItem(ctx context.Context, ownerID string, in CigarInput) (*store.Cigar, error) {
	if err := validateCigar(in); err != nil {
		return nil, err
	}
	cigar := newCigar(ownerID, nil, in)
	if err := s.cigars.CreateCigar(ctx, cigar); err != nil {
		return nil, err
	}
	return cigar, nil
}

// GetCigar returns a cigar the actor can at least view.
func (s *Service) GetCigar(ctx context.Context, actorID, cigarID string) (*store.Cigar, error) {
	cigar, err := s.cigars.GetCigar(ctx, cigarID)
	if err != nil {
		return nil, err
	}
	if err := s.cigarAccess(ctx, actorID, cigar, access.LevelView); err != nil {
		return nil, err
	}
	return cigar, nil
}

// ListCigars returns a humidor's cigars ordered by name. Requires
// view permission.
func (s *Service) ListCigars(ctx context.Context, actorID, humidorID string) ([]*store.Cigar, error) {
	if _, _, err := s.resolver.Require(ctx, actorID, humidorID, access.LevelView); err != nil {
		return nil, err
	}
	return s.cigars.ListCigarsByHumidor(ctx, humidorID)
}

// ListWishList returns the actor's own wish-list items ordered by name.
func (s *Service) ListWishList(ctx context.Context, ownerID string) ([]*store.Cigar, error) {
	return s.cigars.ListWishList(ctx, ownerID)
}

// UpdateCigar applies a patch. Requires edit permission on the
// cigar's container; moving it additionally requires edit permission
// on the destination. Pulling a cigar out to the wish list is
// reserved for its owner.
func (s *Service) UpdateCigar(ctx context.Context, actorID, cigarID string, patch CigarPatch) (*store.Cigar, error) {
	cigar, err := s.cigars.GetCigar(ctx, cigarID)
	if err != nil {
		return nil, err
	}
	if err := s.cigarAccess(ctx, actorID, cigar, access.LevelEdit); err != nil {
		return nil, err
	}

	if patch.HumidorID != nil {
		if *patch.HumidorID == "" {
			if cigar.OwnerID != actorID {
				return nil, access.ErrInsufficient
			}
			cigar.HumidorID = nil
		} else {
			dest, _, err := s.resolver.Require(ctx, actorID, *patch.HumidorID, access.LevelEdit)
			if err != nil {
				return nil, err
			}
			// Ownership follows the container.
			cigar.HumidorID = &dest.ID
			cigar.OwnerID = dest.OwnerID
		}
	}

	if patch.Brand != nil {
		if err := validate.Required("brand", *patch.Brand, 100); err != nil {
			return nil, err
		}
		cigar.Brand = *patch.Brand
	}
	if patch.Name != nil {
		if err := validate.Required("name", *patch.Name, 100); err != nil {
			return nil, err
		}
		cigar.Name = *patch.Name
	}
	if patch.Size != nil {
		cigar.Size = *patch.Size
	}
	if patch.Strength != nil {
		cigar.Strength = *patch.Strength
	}
	if patch.Origin != nil {
		cigar.Origin = *patch.Origin
	}
	if patch.Wrapper != nil {
		cigar.Wrapper = *patch.Wrapper
	}
	if patch.Binder != nil {
		cigar.Binder = *patch.Binder
	}
	if patch.Filler != nil {
		cigar.Filler = *patch.Filler
	}
	if patch.RingGauge != nil {
		if err := validate.IntRange("ring_gauge", *patch.RingGauge, 20, 80); err != nil {
			return nil, err
		}
		cigar.RingGauge = patch.RingGauge
	}
	if patch.LengthInches != nil {
		cigar.LengthInches = patch.LengthInches
	}
	if patch.Price != nil {
		if *patch.Price < 0 {
			return nil, validate.Failf("price", "must not be negative")
		}
		cigar.Price = patch.Price
	}
	if patch.PurchaseDate != nil {
		cigar.PurchaseDate = patch.PurchaseDate
	}
	if patch.Quantity != nil {
		if *patch.Quantity < 0 {
			return nil, validate.Failf("quantity", "must not be negative")
		}
		cigar.Quantity = *patch.Quantity
	}
	if patch.Notes != nil {
		cigar.Notes = *patch.Notes
	}
	if patch.RetailLink != nil {
		cigar.RetailLink = *patch.RetailLink
	}
	if patch.ImageURL != nil {
		cigar.ImageURL = *patch.ImageURL
	}

	cigar.UpdatedAt = time.Now().UTC()
	if err := s.cigars.UpdateCigar(ctx, cigar); err != nil {
		return nil, err
	}
	return cigar, nil
}

// DeleteCigar removes a cigar. Requires full permission on its
// container; owners always qualify.
func (s *Service) DeleteCigar(ctx context.Context, actorID, cigarID string) error {
	cigar, err := s.cigars.GetCigar(ctx, cigarID)
	if err != nil {
		return err
	}
	if err := s.cigarAccess(ctx, actorID, cigar, access.LevelFull); err != nil {
		return err
	}
	return s.cigars.DeleteCigar(ctx, cigarID)
}

// SetFavorite flags or unflags a cigar. Requires edit permission.
func (s *Service) SetFavorite(ctx context.Context, actorID, cigarID string, favorite bool) (*store.Cigar, error) {
	cigar, err := s.cigars.GetCigar(ctx, cigarID)
	if err != nil {
		return nil, err
	}
	if err := s.cigarAccess(ctx, actorID, cigar, access.LevelEdit); err != nil {
		return nil, err
	}

	cigar.IsFavorite = favorite
	cigar.UpdatedAt = time.Now().UTC()
	if err := s.cigars.UpdateCigar(ctx, cigar); err != nil {
		return nil, err
	}
	return cigar, nil
}

// MoveQuantity splits n sticks off a contained cigar into the
// destination humidor and returns the clone created there. Requires
// edit permission on both containers. The source row is deleted when
// it reaches zero.
func (s *Service) MoveQuantity(ctx context.Context, actorID, cigarID, destHumidorID string, n int) (*store.Cigar, error) {
	if err := validate.Positive("quantity", n); err != nil {
		return nil, err
	}

	cigar, err := s.cigars.GetCigar(ctx, cigarID)
	if err != nil {
		return nil, err
	}
	if err := s.cigarAccess(ctx, actorID, cigar, access.LevelEdit); err != nil {
		return nil, err
	}
	if cigar.HumidorID == nil {
		return nil, validate.Failf("cigar_id", "wish-list items cannot be split")
	}
	if *cigar.HumidorID == destHumidorID {
		return nil, validate.Failf("destination_humidor_id", "cigar is already in this humidor")
	}
	if n > cigar.Quantity {
		return nil, validate.Failf("quantity", "only %d available", cigar.Quantity)
	}

	dest, _, err := s.resolver.Require(ctx, actorID, destHumidorID, access.LevelEdit)
	if err != nil {
		return nil, err
	}

	// Clone into the destination before draining the source.
	now := time.Now().UTC()
	clone := *cigar
	clone.ID = store.NewID()
	clone.OwnerID = dest.OwnerID
	clone.HumidorID = &dest.ID
	clone.Quantity = n
	clone.CreatedAt = now
	clone.UpdatedAt = now
	if err := s.cigars.CreateCigar(ctx, &clone); err != nil {
		return nil, err
	}

	if remaining := cigar.Quantity - n; remaining == 0 {
		if err := s.cigars.DeleteCigar(ctx, cigarID); err != nil {
			return nil, err
		}
	} else {
		cigar.Quantity = remaining
		cigar.UpdatedAt = now
		if err := s.cigars.UpdateCigar(ctx, cigar); err != nil {
			return nil, err
		}
	}
	return &clone, nil
}

// cigarAccess checks the actor's level on the cigar's container.
// Wish-list items short-circuit to an owner check.
func (s *Service) cigarAccess(ctx context.Context, actorID string, cigar *store.Cigar, min access.Level) error {
	if cigar.HumidorID == nil {
		if cigar.OwnerID != actorID {
			return access.ErrNoAccess
		}
		return nil
	}
	_, _, err := s.resolver.Require(ctx, actorID, *cigar.HumidorID, min)
	return err
}

func newCigar(ownerID string, humidorID *string, in CigarInput) *store.Cigar {
	now := time.Now().UTC()
	return &store.Cigar{
		ID:           store.NewID(),
		OwnerID:      ownerID,
		HumidorID:    humidorID,
		Brand:        in.Brand,
		Name:         in.Name,
		Size:         in.Size,
		Strength:     in.Strength,
		Origin:       in.Origin,
		Wrapper:      in.Wrapper,
		Binder:       in.Binder,
		Filler:       in.Filler,
		RingGauge:    in.RingGauge,
		LengthInches: in.LengthInches,
		Price:        in.Price,
		PurchaseDate: in.PurchaseDate,
		Quantity:     in.Quantity,
		Notes:        in.Notes,
		RetailLink:   in.RetailLink,
		ImageURL:     in.ImageURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func validateCigar(in CigarInput) error {
	if err := validate.Required("brand", in.Brand, 100); err != nil {
		return err
	}
	if err := validate.Required("name", in.Name, 100); err != nil {
		return err
	}
	if in.Quantity < 0 {
		return validate.Failf("quantity", "must not be negative")
	}
	if in.Price != nil && *in.Price < 0 {
		return validate.Failf("price", "must not be negative")
	}
	if in.RingGauge != nil {
		if err := validate.IntRange("ring_gauge", *in.RingGauge, 20, 80); err != nil {
			return err
		}
	}
	return nil
}
