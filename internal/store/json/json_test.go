package json_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vitolahq/vitola/internal/store"
	_ "github.com/vitolahq/vitola/internal/store/json"
	"github.com/vitolahq/vitola/internal/store/testutil"
)

func TestJSONDriver(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "vitola-test-json-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	cfg := &store.DriverConfig{
		Driver:  "json",
		DataDir: tempDir,
	}

	testutil.RunDriverTests(t, "json", cfg)

	// Verify the data file was created
	if _, err := os.Stat(filepath.Join(tempDir, "vitola.json")); os.IsNotExist(err) {
		t.Error("vitola.json not created")
	}
}

func TestJSONDriverSurvivesRestart(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "vitola-test-json-restart-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	ctx := context.Background()
	cfg := &store.DriverConfig{
		Driver:  "json",
		DataDir: tempDir,
	}

	s, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}

	user := testutil.TestUser("restart-user")
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	humidor := testutil.TestHumidor(user.ID)
	if err := s.CreateHumidor(ctx, humidor); err != nil {
		t.Fatal(err)
	}
	token := testutil.TestToken(humidor.ID, user.ID)
	if err := s.CreateToken(ctx, token); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reload driver - data should survive
	s2, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.GetUserByUsername(ctx, "restart-user")
	if err != nil {
		t.Fatalf("user not found after restart: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("data corruption: expected %q, got %q", user.ID, got.ID)
	}
	gotToken, err := s2.GetToken(ctx, token.TokenID)
	if err != nil {
		t.Fatalf("token not found after restart: %v", err)
	}
	if gotToken.ExpiresAt != nil {
		t.Errorf("expected never-expiring token, got %v", gotToken.ExpiresAt)
	}
}

func TestJSONDriverFileOption(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "vitola-test-json-file-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	ctx := context.Background()
	cfg := &store.DriverConfig{
		Driver:  "json",
		DataDir: tempDir,
		Options: map[string]any{"file": "custom.json"},
	}

	s, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.CreateUser(ctx, testutil.TestUser("file-option")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "custom.json")); os.IsNotExist(err) {
		t.Error("custom.json not created")
	}
}

func TestJSONDriverClosed(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "vitola-test-json-closed-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	ctx := context.Background()
	s, err := store.New(&store.DriverConfig{Driver: "json", DataDir: tempDir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	s.Close()

	if err := s.CreateUser(ctx, testutil.TestUser("after-close")); err != store.ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.GetUser(ctx, "anything"); err != store.ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Ping(ctx); err != store.ErrClosed {
		t.Errorf("expected ErrClosed from Ping, got %v", err)
	}
}

func TestJSONDriverTransferRollback(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "vitola-test-json-rollback-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	ctx := context.Background()
	s, err := store.New(&store.DriverConfig{Driver: "json", DataDir: tempDir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

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
	cigar := testutil.TestCigar(from.ID, humidor.ID)
	if err := s.CreateCigar(ctx, cigar); err != nil {
		t.Fatal(err)
	}
	share := testutil.TestShare(humidor.ID, grantee.ID)
	share.GrantedBy = from.ID
	if err := s.UpsertShare(ctx, share); err != nil {
		t.Fatal(err)
	}

	// Block the next save: the atomic rename cannot replace the data
	// file with a non-empty directory sitting in its place.
	path := filepath.Join(tempDir, "vitola.json")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "blocker"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := s.TransferOwnership(ctx, from.ID, to.ID, ""); err == nil {
		t.Fatal("expected transfer to fail while the data file is blocked")
	}

	// Nothing moved: owners and shares read back exactly as before.
	gotHumidor, err := s.GetHumidor(ctx, humidor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotHumidor.OwnerID != from.ID {
		t.Errorf("humidor owner changed after failed transfer: %q", gotHumidor.OwnerID)
	}
	gotCigar, err := s.GetCigar(ctx, cigar.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotCigar.OwnerID != from.ID {
		t.Errorf("cigar owner changed after failed transfer: %q", gotCigar.OwnerID)
	}
	if _, err := s.GetShare(ctx, humidor.ID, grantee.ID); err != nil {
		t.Errorf("share lost after failed transfer: %v", err)
	}

	// With the obstruction gone the same transfer goes through.
	if err := os.RemoveAll(path); err != nil {
		t.Fatal(err)
	}
	result, err := s.TransferOwnership(ctx, from.ID, to.ID, "")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.Humidors != 1 || result.Cigars != 1 {
		t.Errorf("expected 1 humidor and 1 cigar moved, got %+v", result)
	}
}
