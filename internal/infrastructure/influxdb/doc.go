// Package influxdb provides optional time-series telemetry for lanpulse.
//
// Device sightings and manufacturer lookup outcomes are written as
// non-blocking batched points. The package is a side channel: when disabled
// or unreachable it degrades to a no-op and never affects event handling.
package influxdb
