package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// WritePresence records a device sighting.
//
// Measurement: device_seen
// Tags: mac
// Fields: ip, hostname, known
func (c *Client) WritePresence(mac, ip, hostname string, known bool) {
	if !c.IsConnected() {
		return
	}

	point := influxdb2.NewPoint(
		"device_seen",
		map[string]string{
			"mac": mac,
		},
		map[string]interface{}{
			"ip":       ip,
			"hostname": hostname,
			"known":    known,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteLookup records the outcome of a manufacturer lookup.
//
// Measurement: manufacturer_lookup
// Tags: mac, status
// Fields: elapsed_ms
func (c *Client) WriteLookup(mac, status string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := influxdb2.NewPoint(
		"manufacturer_lookup",
		map[string]string{
			"mac":    mac,
			"status": status,
		},
		map[string]interface{}{
			"elapsed_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}
