package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/coach-slot-availability/internal/availability"
)

type AvailabilityService interface {
	Day(ctx context.Context, q availability.Query) (availability.DayResult, error)
	Month(ctx context.Context, q availability.Query, year int, month time.Month) (map[string]bool, error)
}

type RouterConfig struct {
	Service        AvailabilityService
	Policy         availability.Policy
	Postgres       PingFunc
	Redis          PingFunc
	Logger         *zap.Logger
	Env            string
	Version        string
	RequestTimeout time.Duration
	Now            func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability endpoints
	r.Route("/availability", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Get("/slots", slotsHandler(cfg.Service))
		r.Get("/month", monthHandler(cfg.Service))
		r.Post("/evaluate", evaluateHandler(cfg.Policy, cfg.Now))
	})

	return r
}
