// Package inventory implements humidor and cigar management. Every
// operation on a container or a contained item resolves the actor's
// permission level first; nothing is written before the check passes.
//
// Wish-list items are cigars without a container. They are visible
// only to their owner, who acts with full permission on them.
package inventory

import (
	"context"
	"time"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/validate"
)

// Service manages humidors and cigars.
type Service struct {
	humidors store.HumidorStore
	cigars   store.CigarStore
	resolver *access.Resolver
}

// NewService creates an inventory service.
func NewService(humidors store.HumidorStore, cigars store.CigarStore, resolver *access.Resolver) *Service {
	return &Service{
		humidors: humidors,
		cigars:   cigars,
		resolver: resolver,
	}
}

// HumidorInput carries the fields for creating a humidor.
type HumidorInput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Capacity       *int   `json:"capacity"`
	TargetHumidity *int   `json:"target_humidity"`
	Location       string `json:"location"`
	ImageURL       string `json:"image_url"`
}

// HumidorPatch updates a humidor. Nil fields are left untouched; a
// zero Capacity or TargetHumidity clears the stored value.
type HumidorPatch struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Capacity       *int    `json:"capacity"`
	TargetHumidity *int    `json:"target_humidity"`
	Location       *string `json:"location"`
	ImageURL       *string `json:"image_url"`
}

// HumidorSummary is a humidor plus its current cigar count.
type HumidorSummary struct {
	store.Humidor
	CigarCount int `json:"cigar_count"`
}

// CreateHumidor creates a humidor owned by the actor.
func (s *Service) CreateHumidor(ctx context.Context, ownerID string, in HumidorInput) (*store.Humidor, error) {
	if err := validateHumidor(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	humidor := &store.Humidor{
		ID:             store.NewID(),
		OwnerID:        ownerID,
		Name:           in.Name,
		Description:    in.Description,
		Capacity:       in.Capacity,
		TargetHumidity: in.TargetHumidity,
		Location:       in.Location,
		ImageURL:       in.ImageURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.humidors.CreateHumidor(ctx, humidor); err != nil {
		return nil, err
	}
	return humidor, nil
}

// GetHumidor returns a humidor the actor can at least view, along
// with the actor's effective level on it.
func (s *Service) GetHumidor(ctx context.Context, actorID, humidorID string) (*store.Humidor, access.Level, error) {
	return s.resolver.Require(ctx, actorID, humidorID, access.LevelView)
}

// ListHumidors returns the actor's own humidors with cigar counts,
// oldest first.
func (s *Service) ListHumidors(ctx context.Context, ownerID string) ([]HumidorSummary, error) {
	humidors, err := s.humidors.ListHumidorsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]HumidorSummary, 0, len(humidors))
	for _, h := range humidors {
		count, err := s.cigars.CountCigarsByHumidor(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, HumidorSummary{Humidor: *h, CigarCount: count})
	}
	return out, nil
}

// UpdateHumidor applies a patch. Requires full permission, so owners
// and full grantees can adjust settings.
func (s *Service) UpdateHumidor(ctx context.Context, actorID, humidorID string, patch HumidorPatch) (*store.Humidor, error) {
	humidor, _, err := s.resolver.Require(ctx, actorID, humidorID, access.LevelFull)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if err := validate.Required("name", *patch.Name, 100); err != nil {
			return nil, err
		}
		humidor.Name = *patch.Name
	}
	if patch.Description != nil {
		if err := validate.Optional("description", *patch.Description, 500); err != nil {
			return nil, err
		}
		humidor.Description = *patch.Description
	}
	if patch.Capacity != nil {
		if *patch.Capacity == 0 {
			humidor.Capacity = nil
		} else {
			if err := validate.IntRange("capacity", *patch.Capacity, 1, 10000); err != nil {
				return nil, err
			}
			humidor.Capacity = patch.Capacity
		}
	}
	if patch.TargetHumidity != nil {
		if *patch.TargetHumidity == 0 {
			humidor.TargetHumidity = nil
		} else {
			if err := validate.IntRange("target_humidity", *patch.TargetHumidity, 50, 85); err != nil {
				return nil, err
			}
			humidor.TargetHumidity = patch.TargetHumidity
		}
	}
	if patch.Location != nil {
		if err := validate.Optional("location", *patch.Location, 200); err != nil {
			return nil, err
		}
		humidor.Location = *patch.Location
	}
	if patch.ImageURL != nil {
		humidor.ImageURL = *patch.ImageURL
	}

	humidor.UpdatedAt = time.Now().UTC()
	if err := s.humidors.UpdateHumidor(ctx, humidor); err != nil {
		return nil, err
	}
	return humidor, nil
}

// DeleteHumidor removes a humidor and everything in it. Owner only;
// even full grantees cannot destroy the container.
func (s *Service) DeleteHumidor(ctx context.Context, actorID, humidorID string) error {
	if _, err := s.resolver.RequireOwner(ctx, actorID, humidorID); err != nil {
		return err
	}
	return s.humidors.DeleteHumidor(ctx, humidorID)
}

func validateHumidor(in HumidorInput) error {
	if err := validate.Required("name", in.Name, 100); err != nil {
		return err
	}
	if err := validate.Optional("description", in.Description, 500); err != nil {
		return err
	}
	if in.Capacity != nil {
		if err := validate.IntRange("capacity", *in.Capacity, 1, 10000); err != nil {
			return err
		}
	}
	if in.TargetHumidity != nil {
		if err := validate.IntRange("target_humidity", *in.TargetHumidity, 50, 85); err != nil {
			return err
		}
	}
	return validate.Optional("location", in.Location, 200)
}
