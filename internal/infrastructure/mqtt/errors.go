package mqtt

import "errors"

var (
	// ErrNotConnected indicates the client is not connected to the broker.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed indicates a publish operation failed or timed out.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
