package bluez

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
)

const (
	defaultCallTimeout = 3 * time.Second
	defaultIcon        = "bluetooth"
	adapterRoot        = "/org/bluez/"
)

// Config holds gateway settings.
type Config struct {
	// Adapter is the adapter name, e.g. "hci0". Empty selects the first adapter.
	Adapter string

	// CallTimeout bounds every bus call.
	CallTimeout time.Duration

	// BreakerFailures is the number of consecutive transport failures that
	// open the circuit.
	BreakerFailures uint32

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration
}

// Logger defines the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Gateway is a coordinator.Gateway backed by bluetoothd.
type Gateway struct {
	t           transport
	breaker     *breakerTransport // nil when t is not wrapped
	cfg         Config
	adapterPath dbus.ObjectPath
	logger      Logger
}

var _ coordinator.Gateway = (*Gateway)(nil)

// Open connects to the system bus, selects the adapter, and powers it on.
// Any failure wraps coordinator.ErrBackendUnavailable.
func Open(ctx context.Context, cfg Config, logger Logger) (*Gateway, error) {
	bus, err := dialSystemBus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coordinator.ErrBackendUnavailable, err)
	}
	if logger == nil {
		logger = noopLogger{}
	}

	t := newBreakerTransport(bus, cfg.BreakerFailures, cfg.BreakerTimeout, logger)
	g, err := newGateway(ctx, t, cfg, logger)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	g.breaker = t
	return g, nil
}

// newGateway resolves the adapter over t and forces it on.
func newGateway(ctx context.Context, t transport, cfg Config, logger Logger) (*Gateway, error) {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	g := &Gateway{t: t, cfg: cfg, logger: logger}

	path, err := g.resolveAdapter(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coordinator.ErrBackendUnavailable, err)
	}
	g.adapterPath = path

	if err := g.SetPowered(ctx, true); err != nil {
		return nil, fmt.Errorf("%w: powering on %s: %w", coordinator.ErrBackendUnavailable, path, err)
	}

	logger.Debug("bluez adapter ready", "adapter", string(path))
	return g, nil
}

// AdapterPath returns the object path of the selected adapter.
func (g *Gateway) AdapterPath() string {
	return string(g.adapterPath)
}

// BreakerState reports the circuit breaker as "closed", "half-open" or
// "open", or "none" when calls are not guarded.
func (g *Gateway) BreakerState() string {
	if g.breaker == nil {
		return "none"
	}
	return g.breaker.State().String()
}

// Close closes the bus connection.
func (g *Gateway) Close() error {
	return g.t.Close()
}

func (g *Gateway) resolveAdapter(ctx context.Context) (dbus.ObjectPath, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	objects, err := g.t.ManagedObjects(callCtx)
	if err != nil {
		return "", err
	}

	if g.cfg.Adapter != "" {
		path := dbus.ObjectPath(adapterRoot + g.cfg.Adapter)
		if _, ok := objects[path][ifaceAdapter]; !ok {
			return "", fmt.Errorf("%w: %s", ErrAdapterNotFound, g.cfg.Adapter)
		}
		return path, nil
	}

	var adapters []dbus.ObjectPath
	for path, ifaces := range objects {
		if _, ok := ifaces[ifaceAdapter]; ok {
			adapters = append(adapters, path)
		}
	}
	if len(adapters) == 0 {
		return "", ErrAdapterNotFound
	}
	slices.Sort(adapters)
	return adapters[0], nil
}

// =============================================================================
// Adapter power
// =============================================================================

// IsPowered reports the adapter power state. Any failure reports false.
func (g *Gateway) IsPowered(ctx context.Context) bool {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	v, err := g.t.GetProperty(callCtx, g.adapterPath, ifaceAdapter, "Powered")
	if err != nil {
		g.logger.Warn("reading adapter power failed", "error", err)
		return false
	}
	on, ok := v.Value().(bool)
	return ok && on
}

// SetPowered switches the adapter on or off.
func (g *Gateway) SetPowered(ctx context.Context, on bool) error {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	if err := g.t.SetProperty(callCtx, g.adapterPath, ifaceAdapter, "Powered", on); err != nil {
		return fmt.Errorf("%w: set powered=%t: %w", coordinator.ErrCommandFailed, on, err)
	}
	return nil
}

// =============================================================================
// Enumeration
// =============================================================================

// ListDevices returns every device under the adapter, in object path order,
// from a single GetManagedObjects call. A missing property keeps its
// default; a failed enumeration returns an empty list.
func (g *Gateway) ListDevices(ctx context.Context) []device.Record {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	objects, err := g.t.ManagedObjects(callCtx)
	cancel()
	if err != nil {
		g.logger.Warn("device enumeration failed", "error", err)
		return []device.Record{}
	}

	prefix := string(g.adapterPath) + "/"
	var paths []dbus.ObjectPath
	for path, ifaces := range objects {
		if _, ok := ifaces[ifaceDevice]; ok && strings.HasPrefix(string(path), prefix) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)

	records := make([]device.Record, 0, len(paths))
	for _, path := range paths {
		records = append(records, readDevice(path, objects[path][ifaceDevice]))
	}
	return records
}

// readDevice builds a record from the enumeration's Device1 properties.
// GetManagedObjects returns every property bluetoothd has, so a missing one
// keeps its default without a follow-up read.
func readDevice(path dbus.ObjectPath, props map[string]dbus.Variant) device.Record {
	id, ok := property[string](props, "Address")
	if !ok || id == "" {
		id = addressFromPath(path)
	}
	name, _ := property[string](props, "Name")
	icon, ok := property[string](props, "Icon")
	if !ok || icon == "" {
		icon = defaultIcon
	}
	connected, _ := property[bool](props, "Connected")
	paired, _ := property[bool](props, "Paired")

	return device.NewRecord(id, name, icon, connected, paired)
}

// property returns props[name] as T. A missing value or one of another type
// reports false.
func property[T any](props map[string]dbus.Variant, name string) (T, bool) {
	v, ok := props[name]
	if !ok {
		var zero T
		return zero, false
	}
	val, ok := v.Value().(T)
	return val, ok
}

// =============================================================================
// Device commands
// =============================================================================

// Connect connects the device unless it is already connected.
func (g *Gateway) Connect(ctx context.Context, id string) error {
	return g.ensure(ctx, "connect", id, "Connected", true, "Connect")
}

// Disconnect disconnects the device unless it is already disconnected.
func (g *Gateway) Disconnect(ctx context.Context, id string) error {
	return g.ensure(ctx, "disconnect", id, "Connected", false, "Disconnect")
}

// Pair pairs the device unless it is already paired.
func (g *Gateway) Pair(ctx context.Context, id string) error {
	return g.ensure(ctx, "pair", id, "Paired", true, "Pair")
}

// ensure reads a boolean Device1 property and invokes method only when the
// property differs from want.
func (g *Gateway) ensure(ctx context.Context, op, id, prop string, want bool, method string) error {
	fail := func(err error) error {
		return fmt.Errorf("%w: %s %s: %w", coordinator.ErrCommandFailed, op, id, err)
	}

	addr, err := device.NormaliseID(id)
	if err != nil {
		return fail(err)
	}
	path := g.devicePath(addr)

	readCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	v, err := g.t.GetProperty(readCtx, path, ifaceDevice, prop)
	cancel()
	if err != nil {
		return fail(mapDeviceError(err))
	}
	current, ok := v.Value().(bool)
	if !ok {
		return fail(fmt.Errorf("%w: %s is %T", ErrUnexpectedType, prop, v.Value()))
	}
	if current == want {
		g.logger.Debug("device already in target state", "op", op, "device_id", addr)
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	if err := g.t.Call(callCtx, path, ifaceDevice+"."+method); err != nil {
		return fail(mapDeviceError(err))
	}
	return nil
}

// devicePath converts "AA:BB:CC:DD:EE:FF" to ".../dev_AA_BB_CC_DD_EE_FF".
func (g *Gateway) devicePath(addr string) dbus.ObjectPath {
	return dbus.ObjectPath(string(g.adapterPath) + "/dev_" + strings.ReplaceAll(addr, ":", "_"))
}

// addressFromPath recovers an address from a device object path.
func addressFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
}

func mapDeviceError(err error) error {
	var reply dbus.Error
	if errors.As(err, &reply) && reply.Name == errUnknownObject {
		return fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
	}
	return err
}
