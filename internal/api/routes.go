package api

import (
	"log/slog"
	"time"

	"image.share/config"
	"image.share/internal/links"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(svc *links.Service, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	h := NewHandler(svc, cfg, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(Logger(logger.With(slog.String("component", "http"))))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if cfg.Metrics.Enabled {
		r.Use(Metrics)
	}

	// Health
	r.Get("/health", h.Health)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/links", func(r chi.Router) {
			r.Post("/", h.CreateLink)
			r.Get("/{id}", h.GetStatus)
		})
	})

	// Share links
	r.Get("/view-image/{id}", h.ViewImage)
	r.Get("/view-image/{id}/", h.ViewImage)

	return r
}
