package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/shopboard/statusboard-api/internal/auth"
	"github.com/shopboard/statusboard-api/internal/board"
	"github.com/shopboard/statusboard-api/internal/config"
	"github.com/shopboard/statusboard-api/internal/tenant"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Board     *board.Service
	JWTSecret string
	CORS      []string

	RequestDeadline time.Duration

	MoveRateLimit    RateLimitConfig
	DefaultRateLimit RateLimitConfig
}

// NewServer builds a Server from the loaded configuration and a
// constructed board.Service.
func NewServer(cfg *config.Config, boardSvc *board.Service) *Server {
	return &Server{
		Board:           boardSvc,
		JWTSecret:       cfg.JWTSecret,
		CORS:            cfg.CORSOrigins(),
		RequestDeadline: time.Duration(cfg.RequestDeadlineMs) * time.Millisecond,
		MoveRateLimit: RateLimitConfig{
			Burst:              cfg.RateLimitMoveBurst,
			SustainedPerSecond: float64(cfg.RateLimitMoveSustained),
		},
		DefaultRateLimit: RateLimitConfig{Burst: 60, SustainedPerSecond: 20},
	}
}

// Routes builds the full HTTP router: ambient middleware, CORS,
// authentication/tenant resolution, and the Status Board route table.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestDeadlineMiddleware(s.RequestDeadline))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORS,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Tenant-Id", "X-Request-Id", "X-CSRF-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Shop-floor staff can view and work the board; customers never see
	// the admin surface at all.
	boardRoles := []auth.Role{auth.RoleOwner, auth.RoleAdvisor, auth.RoleTechnician, auth.RoleAccountant}
	moveRoles := []auth.Role{auth.RoleOwner, auth.RoleAdvisor, auth.RoleTechnician}

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(s.JWTSecret, WriteError))
		r.Use(tenant.NewMiddleware(WriteError))
		r.Use(auth.RequireRole(WriteError, boardRoles...))
		r.Use(RateLimitMiddleware(s.DefaultRateLimit))

		r.Get("/api/admin/appointments/board", s.handleBoard)
		r.Get("/api/admin/dashboard/stats", s.handleStats)
		r.Get("/api/admin/appointments", s.handleListAppointments)
		r.Get("/api/admin/appointments/{id}", s.handleGetAppointment)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(WriteError, moveRoles...))
			r.Use(RateLimitMiddleware(s.MoveRateLimit))
			r.Patch("/api/admin/appointments/{id}/move", s.handleMoveAppointment)
		})
	})

	log.Info().Msg("http routes registered")
	return r
}
