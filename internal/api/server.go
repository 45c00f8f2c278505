// Package api provides the HTTP REST API for lanpulse.
//
// It exposes the lease-event ingest endpoint used by the network controller,
// device registry read/update operations, and manufacturer lookup endpoints.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
	"github.com/lanpulse/lanpulse/internal/infrastructure/database"
	"github.com/lanpulse/lanpulse/internal/infrastructure/influxdb"
	"github.com/lanpulse/lanpulse/internal/infrastructure/logging"
	"github.com/lanpulse/lanpulse/internal/infrastructure/mqtt"
	"github.com/lanpulse/lanpulse/internal/manufacturer"
	"github.com/lanpulse/lanpulse/internal/notify"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.ServerConfig
	Logger   *logging.Logger
	DB       *database.DB
	Repo     device.Repository
	Lookups  *manufacturer.Service
	Notifier *notify.Notifier
	MQTT     *mqtt.Client     // optional: nil when MQTT is disabled
	Influx   *influxdb.Client // optional: nil when InfluxDB is disabled
	Version  string
}

// Server is the HTTP API server for lanpulse.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg      config.ServerConfig
	logger   *logging.Logger
	db       *database.DB
	repo     device.Repository
	lookups  *manufacturer.Service
	notifier *notify.Notifier
	mqtt     *mqtt.Client
	influx   *influxdb.Client
	version  string
	server   *http.Server

	// fanout tracks per-event side-channel goroutines so Close can drain
	// them instead of dropping a pending notification or publish.
	fanout sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, repo, lookup service)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Lookups == nil {
		return nil, fmt.Errorf("manufacturer lookup service is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	// MQTT and InfluxDB are optional side channels.

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		db:       deps.DB,
		repo:     deps.Repo,
		lookups:  deps.Lookups,
		notifier: deps.Notifier,
		mqtt:     deps.MQTT,
		influx:   deps.Influx,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for startup (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections. Detached side-channel
// work (notifications, MQTT/InfluxDB publishes) is drained last so a
// sighting accepted just before shutdown still gets delivered.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	defer s.drainFanOut()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// drainFanOut waits for outstanding side-channel goroutines. The wait is
// bounded: each goroutine already runs under sideChannelTimeout, so give
// them that long and no more.
func (s *Server) drainFanOut() {
	done := make(chan struct{})
	go func() {
		s.fanout.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(sideChannelTimeout):
		s.logger.Warn("timed out draining event side channels")
	}
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
