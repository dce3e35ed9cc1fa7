// Package store picks a storage backend from configuration.
package store

import (
	"context"
	"fmt"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/config"
	"github.com/warp/capacity-engine/store/postgres"
	"github.com/warp/capacity-engine/store/sqlite"
)

// Store is an api.Store that owns a connection.
type Store interface {
	api.Store
	Close() error
}

var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open connects to the backend named by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.DB, err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", config.ErrInvalidConfig, cfg.Driver)
	}
}
