package influxdb

import "errors"

var (
	// ErrDisabled indicates InfluxDB is disabled in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
