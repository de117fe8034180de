// Command migrate applies pending goose migrations from ./migrations
// against DATABASE_URL, then exits. Intended to run once per deploy,
// ahead of starting cmd/server.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopboard/statusboard-api/internal/db"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "statusboard-migrate").Logger()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, databaseURL, db.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrationsDir, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Msg("migrations applied")
}
