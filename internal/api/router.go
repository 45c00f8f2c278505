package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Liveness probe, outside the API namespace for the benefit of plain
	// container health checks.
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Lease event ingest (network controller webhook)
		r.Post("/events", s.handleEvent)

		// Device registry
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{mac}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/", s.handleUpdateDevice)
			})
		})

		// Manufacturer lookups
		r.Route("/manufacturer", func(r chi.Router) {
			r.Post("/retry", s.handleRetryFailed)
			r.Route("/{mac}", func(r chi.Router) {
				r.Get("/", s.handleGetManufacturer)
				r.Post("/retry", s.handleRetryDevice)
			})
		})
	})

	return r
}

// handleHealth returns the server health status, including database
// connectivity and the optional side channels.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	components := map[string]string{}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			status = "degraded"
			components["database"] = err.Error()
		} else {
			components["database"] = "ok"
		}
	}

	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			status = "degraded"
			components["mqtt"] = err.Error()
		} else {
			components["mqtt"] = "ok"
		}
	}

	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			status = "degraded"
			components["influxdb"] = err.Error()
		} else {
			components["influxdb"] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
