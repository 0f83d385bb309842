// Package store elige el backend de core.Store según configuración.
package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/keysmith/internal/config"
	"github.com/dropDatabas3/keysmith/internal/store/core"
	fsstore "github.com/dropDatabas3/keysmith/internal/store/fs"
	memstore "github.com/dropDatabas3/keysmith/internal/store/memory"
	pgstore "github.com/dropDatabas3/keysmith/internal/store/pg"
	redisstore "github.com/dropDatabas3/keysmith/internal/store/redis"
)

// New construye el Store indicado por cfg.Store.Kind.
func New(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.Store.Kind {
	case "", "memory":
		return memstore.New(), nil
	case "fs":
		return fsstore.New(cfg.Store.FS.Root)
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			return nil, fmt.Errorf("store kind redis requires store.redis.addr")
		}
		return redisstore.New(cfg.Store.Redis.Addr, cfg.Store.Redis.DB, cfg.Store.Redis.Prefix), nil
	case "postgres":
		if cfg.Store.Postgres.DSN == "" {
			return nil, fmt.Errorf("store kind postgres requires store.postgres.dsn")
		}
		return pgstore.New(ctx, cfg.Store.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}
