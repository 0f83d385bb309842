// Package redis implementa core.Store sobre Redis.
// Las signing keys se guardan con SET EX: el TTL lo aplica Redis y no hace
// falta purga propia. La paginación usa el cursor de SCAN como pageToken.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/dropDatabas3/keysmith/internal/store/core"
	rdb "github.com/redis/go-redis/v9"
)

type Store struct {
	c      *rdb.Client
	prefix string
}

func New(addr string, db int, prefix string) *Store {
	return &Store{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

// keyringSegment escapa el keyring para que el ":" separador nunca aparezca
// dentro del segmento: un keyring "a" no debe matchear records de "a:b".
// QueryEscape (y no PathEscape) porque PathEscape deja ":" sin escapar.
func keyringSegment(keyring string) string {
	return url.QueryEscape(keyring)
}

func (s *Store) keyFor(keyring, kid string) string {
	return s.prefix + "key:" + keyringSegment(keyring) + ":" + kid
}

func (s *Store) PutKey(ctx context.Context, rec core.KeyRecord, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal key record: %w", err)
	}
	return s.c.Set(ctx, s.keyFor(rec.Keyring, rec.KID), b, ttl).Err()
}

// ListKeys pagina con el cursor de SCAN. La garantía de SCAN (toda clave
// presente durante el recorrido completo se visita al menos una vez, sin
// duplicados dentro de una pasada estable) alcanza para el contrato: sin
// mutación concurrente sobre la página no se saltea ni duplica nada.
func (s *Store) ListKeys(ctx context.Context, keyring, pageToken string) ([]core.KeyRecord, string, error) {
	var cursor uint64
	if pageToken != "" {
		c, err := strconv.ParseUint(pageToken, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		cursor = c
	}

	match := s.prefix + "key:" + keyringSegment(keyring) + ":*"
	keys, nextCursor, err := s.c.Scan(ctx, cursor, match, int64(core.PageSize)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("scan keys: %w", err)
	}

	now := time.Now()
	recs := make([]core.KeyRecord, 0, len(keys))
	for _, k := range keys {
		b, err := s.c.Get(ctx, k).Bytes()
		if err != nil {
			// expiró entre el SCAN y el GET
			continue
		}
		var rec core.KeyRecord
		if err := json.Unmarshal(b, &rec); err != nil || rec.Expired(now) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].KID < recs[j].KID })

	next := ""
	if nextCursor != 0 {
		next = strconv.FormatUint(nextCursor, 10)
	}
	return recs, next, nil
}

func (s *Store) LoadCurrentToken(ctx context.Context) (*core.TokenRecord, error) {
	b, err := s.c.Get(ctx, s.prefix+"current_token").Bytes()
	if err != nil {
		if err == rdb.Nil {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	var rec core.TokenRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal current token: %w", err)
	}
	return &rec, nil
}

func (s *Store) SaveCurrentToken(ctx context.Context, rec core.TokenRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, s.prefix+"current_token", b, 0).Err()
}

func (s *Store) LoadTimerHandle(ctx context.Context) (string, error) {
	v, err := s.c.Get(ctx, s.prefix+"rotation_timer").Result()
	if err != nil {
		if err == rdb.Nil {
			return "", core.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (s *Store) SaveTimerHandle(ctx context.Context, handle string) error {
	return s.c.Set(ctx, s.prefix+"rotation_timer", handle, 0).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.c.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.c.Close()
}
