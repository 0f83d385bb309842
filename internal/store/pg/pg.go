// Package pg implementa core.Store sobre Postgres (pgxpool).
// No hay TTL nativo: los records llevan expires_at, todo SELECT filtra por
// expires_at > now() y PutKey purga vencidos de forma oportunista.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/keysmith/internal/store/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS signing_keys (
    keyring        text        NOT NULL,
    kid            text        NOT NULL,
    public_key_pem text        NOT NULL,
    created_at     timestamptz NOT NULL,
    expires_at     timestamptz NOT NULL,
    PRIMARY KEY (keyring, kid)
);
CREATE INDEX IF NOT EXISTS signing_keys_expires_idx ON signing_keys (expires_at);

CREATE TABLE IF NOT EXISTS current_token (
    id          int         PRIMARY KEY,
    token       text        NOT NULL,
    expires_at  timestamptz NOT NULL,
    fingerprint text        NOT NULL
);

CREATE TABLE IF NOT EXISTS rotation_timer (
    id     int  PRIMARY KEY,
    handle text NOT NULL
);
`

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) PutKey(ctx context.Context, rec core.KeyRecord, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO signing_keys (keyring, kid, public_key_pem, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (keyring, kid) DO UPDATE
		 SET public_key_pem = EXCLUDED.public_key_pem, expires_at = EXCLUDED.expires_at`,
		rec.Keyring, rec.KID, rec.PublicKeyPEM, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert signing key: %w", err)
	}
	// purga oportunista de vencidos; best-effort
	_, _ = s.pool.Exec(ctx, `DELETE FROM signing_keys WHERE expires_at <= now()`)
	return nil
}

func (s *Store) ListKeys(ctx context.Context, keyring, pageToken string) ([]core.KeyRecord, string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT keyring, kid, public_key_pem, created_at, expires_at
		 FROM signing_keys
		 WHERE keyring = $1 AND expires_at > now() AND ($2 = '' OR kid > $2)
		 ORDER BY kid
		 LIMIT $3`,
		keyring, pageToken, core.PageSize+1)
	if err != nil {
		return nil, "", fmt.Errorf("list signing keys: %w", err)
	}
	defer rows.Close()

	var recs []core.KeyRecord
	for rows.Next() {
		var rec core.KeyRecord
		if err := rows.Scan(&rec.Keyring, &rec.KID, &rec.PublicKeyPEM, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
			return nil, "", err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(recs) > core.PageSize {
		recs = recs[:core.PageSize]
		next = recs[len(recs)-1].KID
	}
	return recs, next, nil
}

func (s *Store) LoadCurrentToken(ctx context.Context) (*core.TokenRecord, error) {
	var rec core.TokenRecord
	err := s.pool.QueryRow(ctx,
		`SELECT token, expires_at, fingerprint FROM current_token WHERE id = 1`).
		Scan(&rec.Token, &rec.ExpiresAt, &rec.Fingerprint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SaveCurrentToken(ctx context.Context, rec core.TokenRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO current_token (id, token, expires_at, fingerprint)
		 VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, fingerprint = EXCLUDED.fingerprint`,
		rec.Token, rec.ExpiresAt, rec.Fingerprint)
	return err
}

func (s *Store) LoadTimerHandle(ctx context.Context) (string, error) {
	var handle string
	err := s.pool.QueryRow(ctx, `SELECT handle FROM rotation_timer WHERE id = 1`).Scan(&handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", core.ErrNotFound
		}
		return "", err
	}
	return handle, nil
}

func (s *Store) SaveTimerHandle(ctx context.Context, handle string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rotation_timer (id, handle) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET handle = EXCLUDED.handle`,
		handle)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
