package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dropDatabas3/keysmith/internal/store/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func putN(t *testing.T, s *Store, keyring string, n int, ttl time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		rec := core.KeyRecord{
			Keyring:      keyring,
			KID:          fmt.Sprintf("kid-%03d", i),
			PublicKeyPEM: "pem",
			CreatedAt:    now,
			ExpiresAt:    now.Add(ttl),
		}
		if err := s.PutKey(context.Background(), rec, ttl); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
}

func TestListKeys_EmptyKeyring(t *testing.T) {
	s := newStore(t)
	recs, next, err := s.ListKeys(context.Background(), "nunca-visto", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 || next != "" {
		t.Fatalf("expected empty page, got %d recs, next=%q", len(recs), next)
	}
}

func TestListKeys_Pagination(t *testing.T) {
	s := newStore(t)
	putN(t, s, "default", 45, time.Hour)

	seen := map[string]bool{}
	pageToken := ""
	for {
		recs, next, err := s.ListKeys(context.Background(), "default", pageToken)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range recs {
			if seen[r.KID] {
				t.Fatalf("duplicate across pages: %s", r.KID)
			}
			seen[r.KID] = true
		}
		if next == "" {
			break
		}
		pageToken = next
	}
	if len(seen) != 45 {
		t.Fatalf("expected 45, got %d", len(seen))
	}
}

func TestListKeys_ExpiredPurged(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	dead := core.KeyRecord{
		Keyring: "default", KID: "dead", PublicKeyPEM: "pem",
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	live := core.KeyRecord{
		Keyring: "default", KID: "live", PublicKeyPEM: "pem",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := s.PutKey(ctx, dead, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.PutKey(ctx, live, time.Hour); err != nil {
		t.Fatal(err)
	}

	recs, _, err := s.ListKeys(ctx, "default", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].KID != "live" {
		t.Fatalf("expected only live record, got %+v", recs)
	}

	// el vencido se purga del disco, no solo se filtra
	deadPath := filepath.Join(s.root, "keys", "default", "dead.json")
	if _, err := os.Stat(deadPath); !os.IsNotExist(err) {
		t.Fatalf("expired record not purged from disk: %v", err)
	}
}

func TestKeyringEscaping(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := core.KeyRecord{
		Keyring: "ten/ants", KID: "k1", PublicKeyPEM: "pem",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := s.PutKey(ctx, rec, time.Hour); err != nil {
		t.Fatal(err)
	}
	recs, _, err := s.ListKeys(ctx, "ten/ants", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].KID != "k1" {
		t.Fatalf("escaped keyring round trip failed: %+v", recs)
	}
}

func TestCurrentToken_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.LoadCurrentToken(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec := core.TokenRecord{Token: "tok", ExpiresAt: time.Now().UTC().Add(time.Hour), Fingerprint: "fp"}
	if err := s.SaveCurrentToken(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadCurrentToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Token != "tok" || got.Fingerprint != "fp" {
		t.Fatalf("got %+v", got)
	}
}

func TestTimerHandle_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.LoadTimerHandle(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveTimerHandle(ctx, "handle-1"); err != nil {
		t.Fatal(err)
	}
	h, err := s.LoadTimerHandle(ctx)
	if err != nil || h != "handle-1" {
		t.Fatalf("got %q, %v", h, err)
	}
}
