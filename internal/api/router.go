package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
)

type RouterConfig struct {
	Service        *appointment.Service
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Logger         zerolog.Logger
	Env            string
	Version        string
	JWTSecret      string
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	dev := cfg.Env == "dev" || cfg.Env == "development"

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware(cfg.JWTSecret, dev))

		// Appointment endpoints
		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/check-in", checkInAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/start", startAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/no-show", noShowAppointmentHandler(cfg.Service))

		// Provider calendar endpoints
		r.Get("/providers/{providerID}/schedule", providerScheduleHandler(cfg.Service))
		r.Get("/providers/{providerID}/conflicts", providerConflictsHandler(cfg.Service))
	})

	return r
}
