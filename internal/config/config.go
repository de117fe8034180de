// Package config loads the process-wide configuration surface from
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// weakSecrets are placeholder values that must never be accepted as a
// real JWT signing secret.
var weakSecrets = map[string]bool{
	"":          true,
	"secret":    true,
	"changeme":  true,
	"test":      true,
	"password":  true,
	"dev-secret": true,
}

// Config holds every recognized environment option for the service.
type Config struct {
	Env string `env:"ENV" envDefault:"production"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	PoolMax               int32 `env:"POOL_MAX" envDefault:"20"`
	PoolAcquireTimeoutMs  int   `env:"POOL_ACQUIRE_TIMEOUT_MS" envDefault:"2000"`
	StatementTimeoutMs    int   `env:"STATEMENT_TIMEOUT_MS" envDefault:"5000"`
	RequestDeadlineMs     int   `env:"REQUEST_DEADLINE_MS" envDefault:"15000"`

	RateLimitMoveBurst     int `env:"RATE_LIMIT_MOVE_BURST" envDefault:"20"`
	RateLimitMoveSustained int `env:"RATE_LIMIT_MOVE_SUSTAINED" envDefault:"5"`

	DayBoundaryTZ      string `env:"DAY_BOUNDARY_TZ" envDefault:"UTC"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	Port string `env:"PORT" envDefault:"8080"`
}

// Load parses environment variables into a Config and validates the
// invariants that must hold before the process is allowed to start.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if weakSecrets[strings.ToLower(strings.TrimSpace(cfg.JWTSecret))] {
		return nil, fmt.Errorf("JWT_SECRET is missing or set to a known-weak placeholder value")
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	if cfg.PoolMax <= 0 {
		return nil, fmt.Errorf("POOL_MAX must be positive, got %d", cfg.PoolMax)
	}

	return cfg, nil
}

// CORSOrigins splits the configured origin list into a slice suitable
// for go-chi/cors. A bare "*" is passed through unchanged.
func (c *Config) CORSOrigins() []string {
	if c.CORSAllowedOrigins == "" || c.CORSAllowedOrigins == "*" {
		return []string{"*"}
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
