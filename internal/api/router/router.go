// Package router assembles the HTTP surface of the booking platform.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/turnosalud/booking-platform/internal/booking"
	"github.com/turnosalud/booking-platform/internal/http/handlers"
	httpmiddleware "github.com/turnosalud/booking-platform/internal/http/middleware"
	"github.com/turnosalud/booking-platform/internal/professionals"
	"github.com/turnosalud/booking-platform/internal/schedule"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Availability       *handlers.AvailabilityHandler
	Bookings           *booking.Handler
	ScheduleAdmin      *schedule.Handler
	Professionals      *professionals.Handler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Health probes; nil probes are skipped.
	PingDB    func(ctx context.Context) error
	PingRedis func(ctx context.Context) error
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		public.Route("/api", func(api chi.Router) {
			// Slot searches are cheap but cacheable; bookings mutate. Both
			// get the same per-IP budget.
			api.Use(httpmiddleware.RateLimit(10, 30))

			if cfg.Availability != nil {
				api.Mount("/professionals", cfg.Availability.Routes())
			}
			if cfg.Bookings != nil {
				api.Post("/bookings/holds", cfg.Bookings.CreateHold)
				api.Post("/bookings/holds/{holdID}/confirm", cfg.Bookings.ConfirmHold)
				api.Get("/bookings/appointments/{appointmentID}/cancellation", cfg.Bookings.CheckCancellation)
				api.Post("/bookings/appointments/cancel", cfg.Bookings.CancelWithToken)
			}
		})
	})

	// Admin routes, protected by HMAC JWT
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.Professionals != nil {
				admin.Mount("/professionals", cfg.Professionals.Routes())
			}
			if cfg.ScheduleAdmin != nil {
				admin.Mount("/schedules", cfg.ScheduleAdmin.Routes())
			}
			if cfg.Bookings != nil {
				admin.Post("/appointments/{appointmentID}/cancel", cfg.Bookings.CancelByStaff)
			}
		})
	}

	return r
}

func healthHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := `{"status": "ok"}`
		if cfg.PingDB != nil {
			if err := cfg.PingDB(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body = `{"status": "degraded", "component": "postgres"}`
			}
		}
		if status == http.StatusOK && cfg.PingRedis != nil {
			if err := cfg.PingRedis(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body = `{"status": "degraded", "component": "redis"}`
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
