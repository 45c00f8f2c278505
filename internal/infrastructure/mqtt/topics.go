package mqtt

import "strings"

// topicPrefix is the root of the lanpulse topic namespace.
const topicPrefix = "lanpulse"

// Topics builds lanpulse topic strings. The zero value is ready to use.
type Topics struct{}

// SystemStatus returns the retained service status topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// DeviceEvent returns the presence-event topic for a device. The MAC is
// embedded colon-free so it forms a single topic level.
func (Topics) DeviceEvent(mac string) string {
	return topicPrefix + "/devices/" + strings.ReplaceAll(mac, ":", "") + "/event"
}
