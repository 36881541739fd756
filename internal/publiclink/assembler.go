package publiclink

import (
	"context"
	"errors"
	"time"

	"github.com/vitolahq/vitola/internal/store"
)

// ErrInvalidToken is the only failure the public surface reports.
// Unknown, expired and revoked tokens, and storage failures along the
// way, are deliberately indistinguishable to the caller.
var ErrInvalidToken = errors.New("invalid or expired share token")

// PublicOwner is the owner projection in public views. No id, no
// email.
type PublicOwner struct {
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// PublicCigar is the cigar projection in public views. Purchase data
// (price, purchase date, vendor) never appears here.
type PublicCigar struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand,omitempty"`
	Origin       string   `json:"origin,omitempty"`
	Wrapper      string   `json:"wrapper,omitempty"`
	Strength     string   `json:"strength,omitempty"`
	RingGauge    *int     `json:"ring_gauge,omitempty"`
	LengthInches *float64 `json:"length_inches,omitempty"`
	Quantity     int      `json:"quantity"`
	Notes        string   `json:"notes,omitempty"`
	RetailLink   string   `json:"retail_link,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
}

// PublicHumidor is the anonymous view of a shared humidor.
// Favorites and WishList are null when the token excludes them and an
// array (possibly empty) when it includes them.
type PublicHumidor struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Owner       PublicOwner   `json:"owner"`
	Cigars      []PublicCigar `json:"cigars"`
	CigarCount  int           `json:"cigar_count"`
	Favorites   []PublicCigar `json:"favorites"`
	WishList    []PublicCigar `json:"wish_list"`
}

// Assembler builds public views from share tokens.
type Assembler struct {
	users    store.UserStore
	humidors store.HumidorStore
	cigars   store.CigarStore
	tokens   store.TokenStore
}

// NewAssembler creates a public view assembler.
func NewAssembler(users store.UserStore, humidors store.HumidorStore, cigars store.CigarStore, tokens store.TokenStore) *Assembler {
	return &Assembler{
		users:    users,
		humidors: humidors,
		cigars:   cigars,
		tokens:   tokens,
	}
}

// Assemble resolves a token into the view it grants. Every failure
// mode collapses into ErrInvalidToken.
func (a *Assembler) Assemble(ctx context.Context, tokenID string) (*PublicHumidor, error) {
	token, err := a.tokens.GetToken(ctx, tokenID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !token.UsableAt(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}

	humidor, err := a.humidors.GetHumidor(ctx, token.ContainerID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	owner, err := a.users.GetUser(ctx, humidor.OwnerID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	contained, err := a.cigars.ListCigarsByHumidor(ctx, humidor.ID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	view := &PublicHumidor{
		ID:          humidor.ID,
		Name:        humidor.Name,
		Description: humidor.Description,
		ImageURL:    humidor.ImageURL,
		CreatedAt:   humidor.CreatedAt,
		Owner: PublicOwner{
			Username: owner.Username,
			FullName: owner.FullName,
		},
		Cigars:     make([]PublicCigar, 0, len(contained)),
		CigarCount: len(contained),
	}
	for _, cigar := range contained {
		view.Cigars = append(view.Cigars, publicCigar(cigar, cigar.Quantity))
	}

	if token.IncludeFavorites {
		// Favorites stay scoped to this container; a token never
		// reveals items from the owner's other humidors.
		view.Favorites = make([]PublicCigar, 0)
		for _, cigar := range contained {
			if cigar.IsFavorite {
				view.Favorites = append(view.Favorites, publicCigar(cigar, cigar.Quantity))
			}
		}
	}

	if token.IncludeWishList {
		wish, err := a.cigars.ListWishList(ctx, owner.ID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		// Wish-list entries are not held inventory, so they present
		// with quantity zero.
		view.WishList = make([]PublicCigar, 0, len(wish))
		for _, cigar := range wish {
			view.WishList = append(view.WishList, publicCigar(cigar, 0))
		}
	}

	return view, nil
}

func publicCigar(c *store.Cigar, quantity int) PublicCigar {
	return PublicCigar{
		ID:           c.ID,
		Name:         c.Name,
		Brand:        c.Brand,
		Origin:       c.Origin,
		Wrapper:      c.Wrapper,
		Strength:     c.Strength,
		RingGauge:    c.RingGauge,
		LengthInches: c.LengthInches,
		Quantity:     quantity,
		Notes:        c.Notes,
		RetailLink:   c.RetailLink,
		ImageURL:     c.ImageURL,
	}
}
