package transfer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/vitolahq/vitola/internal/store"
	_ "github.com/vitolahq/vitola/internal/store/json"
	"github.com/vitolahq/vitola/internal/store/testutil"
	"github.com/vitolahq/vitola/internal/transfer"
)

func newService(t *testing.T) (*transfer.Service, store.Store) {
	t.Helper()
	s, err := store.New(&store.DriverConfig{Driver: "json", DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return transfer.NewService(s, s, log), s
}

func TestExecuteValidation(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)

	from := testutil.TestUser("from")
	if err := s.CreateUser(ctx, from); err != nil {
		t.Fatal(err)
	}

	// Same source and target
	_, err := svc.Execute(ctx, transfer.Request{FromUserID: from.ID, ToUserID: from.ID})
	if !errors.Is(err, transfer.ErrSameUser) {
		t.Errorf("expected ErrSameUser, got %v", err)
	}

	// Missing target
	_, err = svc.Execute(ctx, transfer.Request{FromUserID: from.ID, ToUserID: store.NewID()})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing target, got %v", err)
	}

	// Missing source
	_, err = svc.Execute(ctx, transfer.Request{FromUserID: store.NewID(), ToUserID: from.ID})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing source, got %v", err)
	}
}

func TestExecuteMovesEverything(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)

	from := testutil.TestUser("from")
	to := testutil.TestUser("to")
	grantee := testutil.TestUser("grantee")
	for _, u := range []*store.User{from, to, grantee} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	humidor := testutil.TestHumidor(from.ID)
	if err := s.CreateHumidor(ctx, humidor); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.CreateCigar(ctx, testutil.TestCigar(from.ID, humidor.ID)); err != nil {
			t.Fatal(err)
		}
	}
	share := testutil.TestShare(humidor.ID, grantee.ID)
	share.GrantedBy = from.ID
	if err := s.UpsertShare(ctx, share); err != nil {
		t.Fatal(err)
	}
	token := testutil.TestToken(humidor.ID, from.ID)
	if err := s.CreateToken(ctx, token); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Execute(ctx, transfer.Request{FromUserID: from.ID, ToUserID: to.ID})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Humidors != 1 || result.Cigars != 3 {
		t.Errorf("expected 1 humidor and 3 cigars, got %+v", result)
	}

	moved, err := s.GetHumidor(ctx, humidor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if moved.OwnerID != to.ID {
		t.Errorf("expected new owner %q, got %q", to.ID, moved.OwnerID)
	}
	if _, err := s.GetShare(ctx, humidor.ID, grantee.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected share dropped, got %v", err)
	}
	// Public tokens keep working for the new owner's container.
	if _, err := s.GetToken(ctx, token.TokenID); err != nil {
		t.Errorf("expected token kept, got %v", err)
	}
}

func TestExecuteNamedHumidor(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)

	from := testutil.TestUser("from")
	to := testutil.TestUser("to")
	other := testutil.TestUser("other")
	for _, u := range []*store.User{from, to, other} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	owned := testutil.TestHumidor(from.ID)
	foreign := testutil.TestHumidor(other.ID)
	for _, h := range []*store.Humidor{owned, foreign} {
		if err := s.CreateHumidor(ctx, h); err != nil {
			t.Fatal(err)
		}
	}

	// A humidor the source does not own is reported as absent.
	_, err := svc.Execute(ctx, transfer.Request{FromUserID: from.ID, ToUserID: to.ID, HumidorID: foreign.ID})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign humidor, got %v", err)
	}

	result, err := svc.Execute(ctx, transfer.Request{FromUserID: from.ID, ToUserID: to.ID, HumidorID: owned.ID})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Humidors != 1 || result.Cigars != 0 {
		t.Errorf("expected 1 empty humidor moved, got %+v", result)
	}
}

func TestExecuteNothingToMove(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)

	from := testutil.TestUser("from")
	to := testutil.TestUser("to")
	for _, u := range []*store.User{from, to} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	// Whole-account transfer with no humidors is a valid no-op.
	result, err := svc.Execute(ctx, transfer.Request{FromUserID: from.ID, ToUserID: to.ID})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Humidors != 0 || result.Cigars != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}
