package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidID is returned when a device identifier is not a Bluetooth address.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrUnknownCommand is returned when a command kind is not recognised.
	ErrUnknownCommand = errors.New("device: unknown command")
)
