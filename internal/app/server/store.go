package server

import (
	"context"
	"fmt"
	"log/slog"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/appraisal/sqlitestore"
	"appraisal/internal/platform/config"
	"appraisal/internal/platform/db"
)

// OpenStore connects the backend selected by STORE_DRIVER and brings its
// schema up to date. The returned func releases the connection.
func OpenStore(ctx context.Context, cfg config.Config) (appraisal.StoreAPI, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				slog.Warn("sqlite close failed", "err", err)
			}
		}
		return store, closeFn, nil
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.RunMigrations {
			applied, err := db.Migrate(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("migrations: %w", err)
			}
			if len(applied) > 0 {
				slog.Info("migrations applied", "versions", applied)
			}
		}
		return appraisal.NewStore(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
