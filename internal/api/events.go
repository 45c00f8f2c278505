package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
	"github.com/lanpulse/lanpulse/internal/infrastructure/mqtt"
)

// leaseEvent is the payload posted by the network controller when a DHCP
// lease changes.
type leaseEvent struct {
	Action string `json:"action"`
	MAC    string `json:"mac"`
	IP     string `json:"ip"`
	Host   string `json:"host"`
}

// sideChannelTimeout bounds the fire-and-forget notification and publish
// work spawned per event.
const sideChannelTimeout = 10 * time.Second

// handleEvent ingests a lease event from the network controller.
//
// The controller treats any non-2xx response as a webhook failure and backs
// off, so this endpoint always returns 204: malformed bodies, unknown
// actions, and invalid MACs are logged and dropped rather than rejected.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	var event leaseEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.logger.Warn("dropping undecodable lease event", "error", err)
		return
	}

	if event.Action != "assigned" {
		s.logger.Debug("ignoring lease event", "action", event.Action)
		return
	}

	mac, err := device.NormalizeMAC(event.MAC)
	if err != nil {
		s.logger.Warn("dropping lease event with invalid mac", "mac", event.MAC, "error", err)
		return
	}

	dev, created, err := s.repo.RecordSeen(r.Context(), mac, event.Host)
	if err != nil {
		s.logger.Error("recording device sighting", "mac", mac, "error", err)
		return
	}

	s.logger.Info("device seen",
		"mac", mac,
		"ip", event.IP,
		"host", event.Host,
		"new", created,
	)

	// New devices get a vendor lookup scheduled straight away so the
	// registry fills in without waiting for a manufacturer query.
	if created {
		s.lookups.Schedule(mac)
	}

	// Notifications and side-channel publishes run detached: the controller
	// has its response, and a slow ntfy or broker must not block ingest.
	// The WaitGroup lets Close drain them before the process exits.
	s.fanout.Add(1)
	go func() {
		defer s.fanout.Done()
		s.fanOutEvent(dev, created, event.IP, event.Host)
	}()
}

// fanOutEvent sends notifications and optional MQTT/InfluxDB writes for a
// recorded sighting. Runs in its own goroutine with a bounded context.
func (s *Server) fanOutEvent(dev *device.Device, created bool, ip, host string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
	defer cancel()

	if created {
		s.notifier.UnknownDevice(ctx, dev.MAC, ip, host)
	} else if dev.Notify {
		s.notifier.TrackedDevice(ctx, dev.DisplayName(host), dev.MAC, ip)
	}

	if s.mqtt != nil {
		err := s.mqtt.PublishPresence(mqtt.PresenceEvent{
			MAC:      dev.MAC,
			IP:       ip,
			Hostname: host,
			Known:    !created,
		})
		if err != nil {
			s.logger.Warn("publishing presence event", "mac", dev.MAC, "error", err)
		}
	}

	if s.influx != nil {
		s.influx.WritePresence(dev.MAC, ip, host, !created)
	}
}
