package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
)

// defaultSendTimeout bounds each notification POST.
const defaultSendTimeout = 5 * time.Second

// Message priorities understood by ntfy.
const (
	PriorityDefault = "default"
	PriorityHigh    = "high"
)

// Logger defines the logging interface used by the Notifier.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Notifier sends push notifications through an ntfy server.
//
// Delivery is fire-and-forget: failures are logged and swallowed, never
// surfaced to the ingest path. When disabled in config every method is a
// no-op.
//
// Thread Safety: safe for concurrent use.
type Notifier struct {
	cfg    config.NtfyConfig
	client *http.Client
	logger Logger
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// New creates a Notifier from config.
func New(cfg config.NtfyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultSendTimeout},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// UnknownDevice notifies that a never-before-seen device connected.
func (n *Notifier) UnknownDevice(ctx context.Context, mac, ip, hostname string) {
	name := hostname
	if name == "" {
		name = "Unknown device"
	}
	n.send(ctx,
		"Unknown Device Connected",
		fmt.Sprintf("%s (%s) connected with IP %s", name, mac, ip),
		PriorityHigh,
	)
}

// TrackedDevice notifies that a device with notifications enabled connected.
func (n *Notifier) TrackedDevice(ctx context.Context, name, mac, ip string) {
	n.send(ctx,
		"Tracked Device Connected",
		fmt.Sprintf("%s (%s) connected with IP %s", name, mac, ip),
		PriorityDefault,
	)
}

// send posts one message to the configured topic. Errors are logged at
// warn level and dropped; the caller never sees them.
func (n *Notifier) send(ctx context.Context, title, message, priority string) {
	if !n.cfg.Enabled {
		return
	}

	url := strings.TrimSuffix(n.cfg.URL, "/") + "/" + n.cfg.Topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		n.logger.Warn("building notification request", "error", err)
		return
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("sending notification", "title", title, "error", err)
		return
	}
	defer resp.Body.Close() //nolint:errcheck // Response body unused

	if resp.StatusCode >= http.StatusBadRequest {
		n.logger.Warn("notification rejected",
			"title", title,
			"status", resp.StatusCode,
		)
		return
	}

	n.logger.Debug("notification sent", "title", title)
}
