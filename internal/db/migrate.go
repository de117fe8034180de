package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// gooseZerologAdapter bridges goose's Printf-style logger interface to
// structured zerolog logging, so migration output joins the service's
// regular log stream instead of going straight to stdout.
type gooseZerologAdapter struct {
	logger zerolog.Logger
}

func (a *gooseZerologAdapter) Fatalf(format string, v ...any) {
	a.logger.Error().Msg(fmt.Sprintf(format, v...))
}

func (a *gooseZerologAdapter) Printf(format string, v ...any) {
	a.logger.Info().Msg(fmt.Sprintf(format, v...))
}

// Migrate applies pending goose migrations from migrationsDir against
// pool. Goose doesn't speak pgx natively, so the pool is bridged through
// pgx's database/sql adapter, sharing the same underlying connections.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrationsDir string, logger zerolog.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close migration database handle")
		}
	}()

	goose.SetLogger(&gooseZerologAdapter{logger: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
