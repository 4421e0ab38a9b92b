// Package router assembles the public HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docadesk/booking-ai-platform/internal/booking"
	"github.com/docadesk/booking-ai-platform/internal/dialog"
	"github.com/docadesk/booking-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/docadesk/booking-ai-platform/internal/http/middleware"
	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *dialog.Handler
	AppointmentHandler  *booking.Handler
	HealthHandler       *handlers.HealthHandler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// ConversationRPS bounds per-IP turns per second; 0 disables limiting.
	ConversationRPS   float64
	ConversationBurst int
}

// New creates a Chi router with all routes configured.
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

	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.Live)
		r.Get("/health/ready", cfg.HealthHandler.Ready)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ConversationHandler != nil {
		r.Route("/conversations", func(conv chi.Router) {
			if cfg.ConversationRPS > 0 {
				burst := cfg.ConversationBurst
				if burst <= 0 {
					burst = 5
				}
				conv.Use(httpmiddleware.RateLimit(cfg.ConversationRPS, burst))
			}
			conv.Post("/start", cfg.ConversationHandler.Start)
			conv.Post("/message", cfg.ConversationHandler.Message)
		})
	}

	if cfg.AppointmentHandler != nil {
		r.Mount("/appointments", cfg.AppointmentHandler.Routes())
	}

	return r
}
