package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iwaseano/iino-yogatest/internal/observability"
	"github.com/iwaseano/iino-yogatest/internal/rateLimit"
)

// SetupRouter wires the public booking API. rl may be nil when no Redis is
// configured; rate limiting is then disabled.
func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Post("/api/reservations", h.CreateReservation)
	r.Get("/api/reservations/search", h.SearchReservations)
	r.Get("/api/reservations/{id}", h.GetReservation)
	r.Post("/api/reservations/{id}/cancel", h.CancelReservation)
	r.Get("/api/classes", h.GetClasses)
	r.Get("/api/classes/{classID}/availability", h.GetAvailability)
	r.Get("/api/health", h.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
