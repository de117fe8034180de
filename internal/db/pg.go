// Package db wraps pgxpool with tenant-bound transactional scopes: every
// tenant-scoped query runs inside a transaction that has the tenant GUC
// set as its first statement, guaranteeing RLS policies see the right
// current_setting('app.tenant_id') regardless of which pooled connection
// was handed out.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Options configures pool sizing and timeouts, set from internal/config.
type Options struct {
	MaxConns             int32
	AcquireTimeout       time.Duration
	StatementTimeout     time.Duration
}

// Open creates a new PostgreSQL connection pool.
func Open(ctx context.Context, url string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	if opts.MaxConns <= 0 {
		opts.MaxConns = 20
	}

	// Connection pool configuration
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("postgres connection pool created")

	return pool, nil
}
