package bluez

import "errors"

// Sentinel errors for BlueZ operations. Startup failures additionally wrap
// coordinator.ErrBackendUnavailable and command failures wrap
// coordinator.ErrCommandFailed.
var (
	// ErrAdapterNotFound is returned when no matching org.bluez.Adapter1 exists.
	ErrAdapterNotFound = errors.New("bluez: adapter not found")

	// ErrDeviceNotFound is returned when a device id has no object under the adapter.
	ErrDeviceNotFound = errors.New("bluez: device not found")

	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("bluez: circuit open")

	// ErrUnexpectedType is returned when a property has an unexpected D-Bus type.
	ErrUnexpectedType = errors.New("bluez: unexpected property type")
)
