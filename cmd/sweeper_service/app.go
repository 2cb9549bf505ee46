package sweeperservice

import (
	"context"
	"time"

	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/postgres"
	"ride-dispatch/internal/software/sweeper"
)

// Run wires the expiry sweeper and blocks until ctx is cancelled. A positive
// interval overrides the configured one.
func Run(ctx context.Context, interval time.Duration) error {
	logger := logger.New("dispatch-sweeper")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, logger, "migrations"); err != nil {
		logger.Error(ctx, "db_migrations_failed", "Failed to apply migrations", err, nil)
		return err
	}

	store := postgres.NewDocStore(pool, logger)
	defer store.Close()

	if interval <= 0 {
		interval = cfg.Service.SweepInterval
	}

	sweeper.New(logger, store, interval).Run(ctx)
	return nil
}
