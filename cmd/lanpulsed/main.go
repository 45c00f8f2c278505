// lanpulse - DHCP device presence tracker
//
// This is the main entry point for the lanpulse daemon. It ingests DHCP
// lease events from a local network controller, maintains a persistent
// device registry, enriches records with manufacturer labels looked up from
// public MAC-vendor services, and pushes connection notifications via ntfy.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lanpulse/lanpulse/migrations"

	"github.com/lanpulse/lanpulse/internal/api"
	"github.com/lanpulse/lanpulse/internal/device"
	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
	"github.com/lanpulse/lanpulse/internal/infrastructure/database"
	"github.com/lanpulse/lanpulse/internal/infrastructure/influxdb"
	"github.com/lanpulse/lanpulse/internal/infrastructure/logging"
	"github.com/lanpulse/lanpulse/internal/infrastructure/mqtt"
	"github.com/lanpulse/lanpulse/internal/manufacturer"
	"github.com/lanpulse/lanpulse/internal/notify"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// lookupDrainTimeout is how long shutdown waits for in-flight manufacturer
// lookups to persist their outcomes.
const lookupDrainTimeout = 15 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting lanpulse",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration. A missing config file is fine: the defaults plus
	// LANPULSE_* environment overrides fully describe a working setup.
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
		log.Info("no config file found, using defaults", "path", configPath)
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry
	repo := device.NewSQLiteRepository(db.DB)

	// Notifier
	notifier := notify.New(cfg.Ntfy)
	notifier.SetLogger(log)
	if cfg.Ntfy.Enabled {
		log.Info("ntfy notifier enabled", "url", cfg.Ntfy.URL, "topic", cfg.Ntfy.Topic)
	} else {
		log.Info("ntfy notifier disabled")
	}

	// Manufacturer lookup pipeline
	limiter := manufacturer.NewLimiter(time.Duration(cfg.Manufacturer.MinIntervalMs) * time.Millisecond)
	resolver := manufacturer.NewResolver(
		providersFromConfig(cfg.Manufacturer.Providers),
		limiter,
		time.Duration(cfg.Manufacturer.RequestTimeoutSeconds)*time.Second,
		cfg.Manufacturer.NotFoundSentinels,
	)
	resolver.SetLogger(log)

	lookups := manufacturer.NewService(repo, resolver, time.Duration(cfg.Manufacturer.CooldownSeconds)*time.Second)
	lookups.SetLogger(log)
	defer drainLookups(lookups, log)
	log.Info("manufacturer pipeline initialised",
		"providers", len(cfg.Manufacturer.Providers),
		"min_interval_ms", cfg.Manufacturer.MinIntervalMs,
		"cooldown_seconds", cfg.Manufacturer.CooldownSeconds,
	)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Record lookup outcomes as time-series points
		lookups.SetTelemetry(func(mac string, status device.LookupStatus, elapsed time.Duration) {
			influxClient.WriteLookup(mac, string(status), elapsed)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:   cfg.Server,
		Logger:   log,
		DB:       db,
		Repo:     repo,
		Lookups:  lookups,
		Notifier: notifier,
		MQTT:     mqttClient,
		Influx:   influxClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting events)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. In-flight lookups drain
	// 5. Database

	log.Info("lanpulse stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LANPULSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LANPULSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// providersFromConfig converts configured providers into resolver providers.
func providersFromConfig(cfgs []config.ProviderConfig) []manufacturer.Provider {
	providers := make([]manufacturer.Provider, 0, len(cfgs))
	for _, p := range cfgs {
		format := manufacturer.FormatText
		if p.Format == "json" {
			format = manufacturer.FormatJSON
		}
		providers = append(providers, manufacturer.Provider{
			Name:   p.Name,
			URL:    p.URL,
			Format: format,
		})
	}
	return providers
}

// drainLookups waits for in-flight lookup tasks so their outcomes reach the
// database before it closes. Bounded: a wedged provider call must not hold
// up shutdown forever.
func drainLookups(lookups *manufacturer.Service, log *logging.Logger) {
	done := make(chan struct{})
	go func() {
		lookups.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(lookupDrainTimeout):
		log.Warn("timed out waiting for in-flight lookups")
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
