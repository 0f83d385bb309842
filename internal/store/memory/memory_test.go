package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dropDatabas3/keysmith/internal/store/core"
)

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

func TestListKeys_PaginationNoSkipNoDup(t *testing.T) {
	s := New()
	putN(t, s, "default", 45, time.Hour)

	seen := map[string]bool{}
	pageToken := ""
	pages := 0
	for {
		recs, next, err := s.ListKeys(context.Background(), "default", pageToken)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pages++
		if len(recs) > core.PageSize {
			t.Fatalf("page larger than PageSize: %d", len(recs))
		}
		for _, r := range recs {
			if seen[r.KID] {
				t.Fatalf("duplicate record across pages: %s", r.KID)
			}
			seen[r.KID] = true
		}
		if next == "" {
			break
		}
		pageToken = next
	}

	if len(seen) != 45 {
		t.Fatalf("expected 45 records across pages, got %d", len(seen))
	}
	if pages < 3 {
		t.Fatalf("expected at least 3 pages for 45 records, got %d", pages)
	}
}

func TestListKeys_KeyringIsolation(t *testing.T) {
	s := New()
	putN(t, s, "default", 3, time.Hour)
	putN(t, s, "v2", 2, time.Hour)

	recs, _, err := s.ListKeys(context.Background(), "v2", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records under v2, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Keyring != "v2" {
			t.Fatalf("foreign keyring leaked: %+v", r)
		}
	}
}

func TestListKeys_ExpiredNeverReturned(t *testing.T) {
	s := New()
	putN(t, s, "default", 2, 20*time.Millisecond)
	putN(t, s, "other", 1, time.Hour)

	time.Sleep(40 * time.Millisecond)

	recs, _, err := s.ListKeys(context.Background(), "default", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("expired records returned: %d", len(recs))
	}
}

func TestCurrentToken_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.LoadCurrentToken(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec := core.TokenRecord{Token: "abc", ExpiresAt: time.Now().Add(time.Hour), Fingerprint: "fp1"}
	if err := s.SaveCurrentToken(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadCurrentToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Token != "abc" || got.Fingerprint != "fp1" {
		t.Fatalf("got %+v", got)
	}

	// cada regeneración sobreescribe, no versiona
	rec2 := core.TokenRecord{Token: "def", ExpiresAt: time.Now().Add(time.Hour), Fingerprint: "fp2"}
	if err := s.SaveCurrentToken(ctx, rec2); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadCurrentToken(ctx)
	if got.Token != "def" {
		t.Fatalf("overwrite failed: %+v", got)
	}
}

func TestTimerHandle_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.LoadTimerHandle(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveTimerHandle(ctx, "h1"); err != nil {
		t.Fatal(err)
	}
	h, err := s.LoadTimerHandle(ctx)
	if err != nil || h != "h1" {
		t.Fatalf("got %q, %v", h, err)
	}
	if err := s.SaveTimerHandle(ctx, "h2"); err != nil {
		t.Fatal(err)
	}
	h, _ = s.LoadTimerHandle(ctx)
	if h != "h2" {
		t.Fatalf("replace failed: %q", h)
	}
}
