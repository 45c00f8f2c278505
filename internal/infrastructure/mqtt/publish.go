package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// PresenceEvent is the payload published when a device is observed on the
// network.
type PresenceEvent struct {
	MAC       string    `json:"mac"`
	IP        string    `json:"ip,omitempty"`
	Hostname  string    `json:"hostname,omitempty"`
	Known     bool      `json:"known"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishPresence publishes a presence event to the device's event topic.
//
// Parameters:
//   - event: Presence details; Timestamp is set to now if zero
//
// Returns:
//   - error: If not connected, marshalling fails, or the publish times out
func (c *Client) PublishPresence(event PresenceEvent) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	topic := Topics{}.DeviceEvent(event.MAC)
	token := c.client.Publish(topic, byte(c.cfg.QoS), false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout on %s", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
