package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial broker connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds the graceful offline status publish
	// during shutdown.
	defaultPublishTimeout = 2 * time.Second

	// defaultDisconnectQuiesce is how long (milliseconds) paho waits for
	// in-flight work before dropping the connection.
	defaultDisconnectQuiesce = 250

	// defaultKeepAlive is the MQTT keep-alive interval.
	defaultKeepAlive = 30 * time.Second
)

// buildClientOptions constructs paho client options from lanpulse config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.Broker.ClientID)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetCleanSession(true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Auto-reconnect with backoff bounded by config.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	return opts
}

// configureLWT sets the Last Will and Testament so the broker announces the
// service as offline if the connection drops without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	topic := Topics{}.SystemStatus()
	payload := buildLWTPayload(clientID)
	opts.SetWill(topic, payload, 1, true)
}

// buildOnlinePayload returns the retained status payload published on connect.
func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(`{"status":"online","client_id":%q,"timestamp":%q}`,
		clientID, time.Now().UTC().Format(time.RFC3339))
}

// buildOfflinePayload returns the retained status payload published on
// graceful shutdown.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(`{"status":"offline","client_id":%q,"reason":"shutdown","timestamp":%q}`,
		clientID, time.Now().UTC().Format(time.RFC3339))
}

// buildLWTPayload returns the status payload the broker publishes on our
// behalf after an unclean disconnect. No timestamp: the broker delivers it
// at an unknown future time.
func buildLWTPayload(clientID string) string {
	return fmt.Sprintf(`{"status":"offline","client_id":%q,"reason":"connection_lost"}`, clientID)
}
