package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"messenger/internal/config"
)

// NewPool opens the shared Postgres pool. Writes come in short bursts from
// many live chat sessions, so the pool favors a higher ceiling with quick
// idle reclaim over pinned connections.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 16
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 2 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifies connectivity; called once at startup so a bad DATABASE_URL
// fails fast instead of on the first message write.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
