package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when metrics are switched off.
	ErrDisabled = errors.New("influxdb: metrics disabled")

	// ErrConnectionFailed wraps a failed ping or an unhealthy server at startup.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps asynchronous write errors passed to the
	// SetOnError callback. Enumeration and command points are never
	// retried.
	ErrWriteFailed = errors.New("influxdb: point write failed")
)
