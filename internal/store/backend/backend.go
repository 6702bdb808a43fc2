// Package backend opens the record store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"lexcal-scheduler/internal/config"
	"lexcal-scheduler/internal/store"
	"lexcal-scheduler/internal/store/postgres"
	"lexcal-scheduler/internal/store/sqlite"
)

type Backend interface {
	store.Store
	store.Users
	Migrate(ctx context.Context) error
}

var (
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
)

// Open connects to the configured store. It does not migrate.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
		}
		return st, nil
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		return postgres.New(pool), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
