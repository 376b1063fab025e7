// Package backend opens the kv.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"alumni-tracker/internal/config"
	"alumni-tracker/internal/db"
	"alumni-tracker/internal/db/migrate"
	"alumni-tracker/internal/kv"
	"alumni-tracker/internal/kv/memory"
	"alumni-tracker/internal/kv/postgres"
	"alumni-tracker/internal/kv/redis"
	"alumni-tracker/internal/kv/sqlite"
)

// Open returns the store named by cfg.StoreBackend. The postgres schema is migrated up
// before the store is returned. Caller must Close the store.
func Open(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory, "":
		return memory.New(), nil
	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.BackendPostgres:
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
			return nil, fmt.Errorf("backend: migrate postgres: %w", err)
		}
		pool, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("backend: open postgres: %w", err)
		}
		return postgres.New(pool), nil
	case config.BackendRedis:
		return redis.Open(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("backend: unknown store backend %q", cfg.StoreBackend)
	}
}
