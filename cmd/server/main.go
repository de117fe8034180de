package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopboard/statusboard-api/internal/board"
	"github.com/shopboard/statusboard-api/internal/config"
	"github.com/shopboard/statusboard-api/internal/db"
	"github.com/shopboard/statusboard-api/internal/httpapi"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "statusboard-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	underlying, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:         cfg.PoolMax,
		AcquireTimeout:   time.Duration(cfg.PoolAcquireTimeoutMs) * time.Millisecond,
		StatementTimeout: time.Duration(cfg.StatementTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer underlying.Close()

	pool := db.NewPool(underlying, db.Options{
		AcquireTimeout:   time.Duration(cfg.PoolAcquireTimeoutMs) * time.Millisecond,
		StatementTimeout: time.Duration(cfg.StatementTimeoutMs) * time.Millisecond,
	})

	tz, err := time.LoadLocation(cfg.DayBoundaryTZ)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.DayBoundaryTZ).Msg("invalid DAY_BOUNDARY_TZ, defaulting to UTC")
		tz = time.UTC
	}

	boardSvc := board.NewService(pool, tz)
	srv := httpapi.NewServer(cfg, boardSvc)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
