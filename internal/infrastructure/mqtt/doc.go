// Package mqtt provides the MQTT publishing layer for lanpulse.
//
// Presence events are published to per-device topics under the lanpulse/
// namespace so other home-automation systems can react to devices joining
// the network. The client maintains a retained status topic with Last Will
// and Testament so subscribers can distinguish a graceful shutdown from a
// crash.
//
// Publishing is optional: when MQTT is disabled in configuration the rest
// of the service runs without a client.
package mqtt
