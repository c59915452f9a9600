package coordinator

import (
	"context"
	"time"

	"github.com/bluewidget/bluewidget/internal/device"
)

// Gateway is the blocking device-management backend.
//
// Implementations need not be safe for concurrent use; the Coordinator never
// calls two methods at once. Every method should honour ctx as its deadline.
type Gateway interface {
	// IsPowered reports the adapter power state. Failures report false.
	IsPowered(ctx context.Context) bool

	// SetPowered switches the adapter on or off.
	SetPowered(ctx context.Context, on bool) error

	// ListDevices returns every device known to the adapter. Fields that
	// could not be read carry their defaults. A failed enumeration returns
	// an empty list.
	ListDevices(ctx context.Context) []device.Record

	// Connect, Disconnect, and Pair are no-ops when the device is already in
	// the target state.
	Connect(ctx context.Context, id string) error
	Disconnect(ctx context.Context, id string) error
	Pair(ctx context.Context, id string) error
}

// SettingsSource provides the simulation flag. It is read on every command.
type SettingsSource interface {
	FunctionalityEnabled() bool
}

// Op names a gateway operation for logs, metrics, and reports.
type Op string

// Gateway operations.
const (
	OpList       Op = "list"
	OpIsPowered  Op = "is_powered"
	OpPowerOn    Op = "power_on"
	OpPowerOff   Op = "power_off"
	OpConnect    Op = Op(device.CommandConnect)
	OpDisconnect Op = Op(device.CommandDisconnect)
	OpPair       Op = Op(device.CommandPair)
)

// Outcome is the result class of a command.
type Outcome string

// Command outcomes.
const (
	OutcomeOK        Outcome = "ok"
	OutcomeSimulated Outcome = "simulated"
	OutcomeFailed    Outcome = "failed"
	OutcomeDropped   Outcome = "dropped"
)

// CommandResult is handed to the AuditSink for every submitted command.
type CommandResult struct {
	Op       Op
	DeviceID string
	Outcome  Outcome
	Err      error
	Duration time.Duration
	At       time.Time
}

// CommandReport is delivered to foreground subscribers after a command
// succeeded or was simulated.
type CommandReport struct {
	Op        Op        `json:"op"`
	DeviceID  string    `json:"device_id,omitempty"`
	Simulated bool      `json:"simulated"`
	At        time.Time `json:"at"`
}

// Metrics receives operational measurements. Implementations must not block.
type Metrics interface {
	RecordEnumeration(seq uint64, devices int, d time.Duration)
	RecordCommand(op Op, outcome Outcome, d time.Duration)
	RecordGatewayCall(op Op, ok bool, d time.Duration)
}

// AuditSink persists command outcomes. It is called from the command worker
// after the gateway gate has been released.
type AuditSink interface {
	RecordCommand(ctx context.Context, result CommandResult) error
}

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) RecordEnumeration(uint64, int, time.Duration) {}
func (noopMetrics) RecordCommand(Op, Outcome, time.Duration)     {}
func (noopMetrics) RecordGatewayCall(Op, bool, time.Duration)    {}
