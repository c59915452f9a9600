package coordinator

import (
	"errors"
	"fmt"
)

// Sentinel errors for coordinator operations.
//
// Use errors.Is() to check for these errors in calling code:
//
//	if errors.Is(err, coordinator.ErrCommandFailed) {
//	    // logged already; the next refresh shows the real state
//	}
var (
	// ErrBackendUnavailable is returned when the Bluetooth backend cannot be
	// reached at startup. It is the only fatal error.
	ErrBackendUnavailable = errors.New("coordinator: backend unavailable")

	// ErrCommandFailed marks a power or device command that failed or timed out.
	ErrCommandFailed = errors.New("coordinator: command failed")

	// ErrGatewayBusy is returned when the gateway gate could not be acquired in time.
	ErrGatewayBusy = errors.New("coordinator: gateway busy")

	// ErrGatewayPanic is returned when a gateway call panicked.
	ErrGatewayPanic = errors.New("coordinator: gateway panic")

	// ErrQueueFull is returned when the command queue cannot accept more work.
	ErrQueueFull = errors.New("coordinator: command queue full")

	// ErrClosed is returned when submitting to a closed coordinator.
	ErrClosed = errors.New("coordinator: closed")

	// ErrUnknownOp is returned for an operation the gateway does not support.
	ErrUnknownOp = errors.New("coordinator: unknown operation")
)

// CommandError describes a failed command. It matches ErrCommandFailed and
// the underlying cause with errors.Is.
type CommandError struct {
	Op       Op
	DeviceID string
	Err      error
}

func (e *CommandError) Error() string {
	if e.DeviceID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.DeviceID, e.Err)
}

// Unwrap exposes both the ErrCommandFailed marker and the cause.
func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}
