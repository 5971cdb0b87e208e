package influxdb

import "errors"

// Domain-specific errors for InfluxDB operations.
var (
	// ErrDisabled is returned when InfluxDB is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server cannot be
	// reached.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
