package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
)

// Client wraps the InfluxDB v2 client for lanpulse telemetry writes.
//
// Writes are non-blocking: points are buffered and flushed in batches by a
// background goroutine. Write errors are surfaced through an optional
// callback rather than returned to callers, so a slow or absent InfluxDB
// never stalls event ingest.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	connMu    sync.RWMutex

	onError func(err error)
	errMu   sync.RWMutex
}

// Connect creates an InfluxDB client and verifies the server is reachable.
//
// Parameters:
//   - ctx: Context for the initial health ping
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Connected client with a running batch writer
//   - error: ErrDisabled if influxdb is disabled, or connection failure
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval * 1000))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ok, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("%w: ping returned not ready", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}

	// Drain the async error channel so batch write failures are observed.
	go func() {
		for err := range c.writeAPI.Errors() {
			c.errMu.RLock()
			callback := c.onError
			c.errMu.RUnlock()
			if callback != nil {
				callback(err)
			}
		}
	}()

	return c, nil
}

// Close flushes buffered points and shuts down the client.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.connected {
		return nil
	}

	c.writeAPI.Flush()
	c.client.Close()
	c.connected = false
	return nil
}

// HealthCheck verifies the InfluxDB server is reachable.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb health check: %w", ErrNotConnected)
	}
	return nil
}

// IsConnected returns whether the client is open.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// SetOnError sets a callback invoked for asynchronous batch write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	c.onError = callback
	c.errMu.Unlock()
}
