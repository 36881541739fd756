// Package transfer moves humidor ownership between accounts. It is an
// administrative operation; handlers gate it behind the admin flag.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vitolahq/vitola/internal/store"
)

var (
	// ErrSameUser rejects transfers where source and target match.
	ErrSameUser = errors.New("source and target users are identical")
	// ErrTransferFailed wraps storage failures so the API can report
	// them without leaking backend detail.
	ErrTransferFailed = errors.New("transfer failed")
)

// Request names what to move. An empty HumidorID moves every humidor
// the source user owns.
type Request struct {
	FromUserID string
	ToUserID   string
	HumidorID  string
}

// Service executes ownership transfers.
type Service struct {
	users       store.UserStore
	transferrer store.Transferrer
	log         *slog.Logger
}

// NewService creates a transfer service.
func NewService(users store.UserStore, transferrer store.Transferrer, log *slog.Logger) *Service {
	return &Service{
		users:       users,
		transferrer: transferrer,
		log:         log,
	}
}

// Execute validates the request and performs the transfer as one
// atomic storage operation. Moved humidors keep their public tokens;
// their shares are dropped so the new owner starts with a clean grant
// list.
func (s *Service) Execute(ctx context.Context, req Request) (store.TransferResult, error) {
	var result store.TransferResult

	if req.FromUserID == req.ToUserID {
		return result, ErrSameUser
	}

	if _, err := s.users.GetUser(ctx, req.FromUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result, fmt.Errorf("source user: %w", store.ErrNotFound)
		}
		return result, err
	}
	if _, err := s.users.GetUser(ctx, req.ToUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result, fmt.Errorf("target user: %w", store.ErrNotFound)
		}
		return result, err
	}

	result, err := s.transferrer.TransferOwnership(ctx, req.FromUserID, req.ToUserID, req.HumidorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result, err
		}
		return result, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	s.log.Info("ownership transferred",
		"from_user", req.FromUserID,
		"to_user", req.ToUserID,
		"humidor_id", req.HumidorID,
		"humidors", result.Humidors,
		"cigars", result.Cigars)
	return result, nil
}
