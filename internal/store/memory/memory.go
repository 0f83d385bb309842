// Package memory implementa core.Store en memoria.
// Las signing keys viven en un go-cache con TTL nativo; token y timer handle
// son registros únicos protegidos por mutex. Es el backend default para dev
// y el que usan los tests del engine.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/keysmith/internal/store/core"
	gocache "github.com/patrickmn/go-cache"
)

type Store struct {
	keys *gocache.Cache

	mu     sync.RWMutex
	token  *core.TokenRecord
	handle string
}

func New() *Store {
	return &Store{
		keys: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func keyFor(keyring, kid string) string {
	return keyring + "/" + kid
}

func (s *Store) PutKey(ctx context.Context, rec core.KeyRecord, ttl time.Duration) error {
	s.keys.Set(keyFor(rec.Keyring, rec.KID), rec, ttl)
	return nil
}

// ListKeys pagina por kid (keyset): el pageToken es el último kid devuelto.
// Mientras no haya mutación concurrente sobre la página, no se saltea ni
// duplica ningún record.
func (s *Store) ListKeys(ctx context.Context, keyring, pageToken string) ([]core.KeyRecord, string, error) {
	prefix := keyring + "/"
	now := time.Now()

	var live []core.KeyRecord
	for k, item := range s.keys.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rec, ok := item.Object.(core.KeyRecord)
		if !ok || rec.Expired(now) {
			continue
		}
		live = append(live, rec)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].KID < live[j].KID })

	var page []core.KeyRecord
	for _, rec := range live {
		if pageToken != "" && rec.KID <= pageToken {
			continue
		}
		page = append(page, rec)
		if len(page) == core.PageSize {
			break
		}
	}

	next := ""
	if len(page) == core.PageSize && page[len(page)-1].KID < live[len(live)-1].KID {
		next = page[len(page)-1].KID
	}
	return page, next, nil
}

func (s *Store) LoadCurrentToken(ctx context.Context) (*core.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, core.ErrNotFound
	}
	cp := *s.token
	return &cp, nil
}

func (s *Store) SaveCurrentToken(ctx context.Context, rec core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &rec
	return nil
}

func (s *Store) LoadTimerHandle(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handle == "" {
		return "", core.ErrNotFound
	}
	return s.handle, nil
}

func (s *Store) SaveTimerHandle(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
