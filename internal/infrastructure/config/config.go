package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lanpulse.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Manufacturer ManufacturerConfig `yaml:"manufacturer"`
	Ntfy         NtfyConfig         `yaml:"ntfy"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ManufacturerConfig contains settings for the vendor-lookup pipeline.
type ManufacturerConfig struct {
	// MinIntervalMs is the minimum spacing between outbound provider calls,
	// shared across all concurrent lookups, in milliseconds.
	MinIntervalMs int `yaml:"min_interval_ms"`

	// CooldownSeconds is how long a failed (or stalled pending) lookup must
	// age before it becomes eligible for another attempt.
	CooldownSeconds int `yaml:"cooldown_seconds"`

	// RequestTimeoutSeconds bounds each individual provider HTTP call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// NotFoundSentinels are case-insensitive substrings that mark a provider
	// response body as a negative result rather than a vendor name.
	NotFoundSentinels []string `yaml:"not_found_sentinels"`

	// Providers are tried in order until one yields a vendor name.
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one vendor-lookup endpoint.
type ProviderConfig struct {
	Name string `yaml:"name"`

	// URL must contain a single %s verb, replaced with the MAC address.
	URL string `yaml:"url"`

	// Format is "text" for plain-text bodies or "json" for structured bodies.
	Format string `yaml:"format"`
}

// NtfyConfig contains push-notification settings for ntfy.
type NtfyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Topic   string `yaml:"topic"`
	Token   string `yaml:"token"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LANPULSE_SECTION_KEY
// For example: LANPULSE_DATABASE_PATH, LANPULSE_NTFY_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
// Environment variable overrides still apply. Used when no config file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 13959,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/lanpulse.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Manufacturer: ManufacturerConfig{
			MinIntervalMs:         500,
			CooldownSeconds:       300,
			RequestTimeoutSeconds: 5,
			NotFoundSentinels:     []string{"not found", "error"},
			Providers: []ProviderConfig{
				{
					Name:   "macvendors",
					URL:    "https://api.macvendors.com/%s",
					Format: "text",
				},
				{
					Name:   "macvendorlookup",
					URL:    "https://www.macvendorlookup.com/api/v2/%s",
					Format: "json",
				},
				{
					Name:   "maclookup",
					URL:    "https://api.maclookup.app/v2/macs/%s",
					Format: "json",
				},
			},
		},
		Ntfy: NtfyConfig{
			Enabled: true,
			URL:     "https://ntfy.sh",
			Topic:   "lanpulse",
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lanpulse",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LANPULSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("LANPULSE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LANPULSE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Database
	if v := os.Getenv("LANPULSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Ntfy
	if v := os.Getenv("LANPULSE_NTFY_URL"); v != "" {
		cfg.Ntfy.URL = v
	}
	if v := os.Getenv("LANPULSE_NTFY_TOPIC"); v != "" {
		cfg.Ntfy.Topic = v
	}
	if v := os.Getenv("LANPULSE_NTFY_TOKEN"); v != "" {
		cfg.Ntfy.Token = v
	}

	// MQTT
	if v := os.Getenv("LANPULSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LANPULSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LANPULSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("LANPULSE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Manufacturer validation
	if c.Manufacturer.MinIntervalMs < 0 {
		errs = append(errs, "manufacturer.min_interval_ms must not be negative")
	}
	if c.Manufacturer.CooldownSeconds <= 0 {
		errs = append(errs, "manufacturer.cooldown_seconds must be positive")
	}
	if c.Manufacturer.RequestTimeoutSeconds <= 0 {
		errs = append(errs, "manufacturer.request_timeout_seconds must be positive")
	}
	if len(c.Manufacturer.Providers) == 0 {
		errs = append(errs, "manufacturer.providers must not be empty")
	}
	for i, p := range c.Manufacturer.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("manufacturer.providers[%d].name is required", i))
		}
		if !strings.Contains(p.URL, "%s") {
			errs = append(errs, fmt.Sprintf("manufacturer.providers[%d].url must contain a %%s placeholder", i))
		}
		if p.Format != "text" && p.Format != "json" {
			errs = append(errs, fmt.Sprintf("manufacturer.providers[%d].format must be \"text\" or \"json\", got %q", i, p.Format))
		}
	}

	// Ntfy validation
	if c.Ntfy.Enabled {
		if c.Ntfy.URL == "" {
			errs = append(errs, "ntfy.url is required when ntfy is enabled")
		}
		if c.Ntfy.Topic == "" {
			errs = append(errs, "ntfy.topic is required when ntfy is enabled")
		}
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Sprintf("mqtt.qos must be 0, 1, or 2, got %d", c.MQTT.QoS))
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
