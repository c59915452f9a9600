package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// D-Bus names used by the gateway.
const (
	busName = "org.bluez"

	ifaceAdapter       = "org.bluez.Adapter1"
	ifaceDevice        = "org.bluez.Device1"
	ifaceProperties    = "org.freedesktop.DBus.Properties"
	ifaceObjectManager = "org.freedesktop.DBus.ObjectManager"

	errUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
)

// objectMap is the GetManagedObjects reply: path → interface → property → value.
type objectMap = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// transport is the narrow set of bus operations the gateway needs.
type transport interface {
	ManagedObjects(ctx context.Context) (objectMap, error)
	GetProperty(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error)
	SetProperty(ctx context.Context, path dbus.ObjectPath, iface, name string, value any) error
	Call(ctx context.Context, path dbus.ObjectPath, method string) error
	Close() error
}

// busTransport talks to bluetoothd over a private system bus connection.
type busTransport struct {
	conn *dbus.Conn
}

// dialSystemBus opens a private system bus connection. A private connection
// can be closed without affecting other users of the shared one.
func dialSystemBus(ctx context.Context) (*busTransport, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	return &busTransport{conn: conn}, nil
}

func (b *busTransport) ManagedObjects(ctx context.Context) (objectMap, error) {
	var objects objectMap
	obj := b.conn.Object(busName, "/")
	if err := obj.CallWithContext(ctx, ifaceObjectManager+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", err)
	}
	return objects, nil
}

func (b *busTransport) GetProperty(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	obj := b.conn.Object(busName, path)
	if err := obj.CallWithContext(ctx, ifaceProperties+".Get", 0, iface, name).Store(&v); err != nil {
		return dbus.Variant{}, fmt.Errorf("get %s.%s on %s: %w", iface, name, path, err)
	}
	return v, nil
}

func (b *busTransport) SetProperty(ctx context.Context, path dbus.ObjectPath, iface, name string, value any) error {
	obj := b.conn.Object(busName, path)
	call := obj.CallWithContext(ctx, ifaceProperties+".Set", 0, iface, name, dbus.MakeVariant(value))
	if call.Err != nil {
		return fmt.Errorf("set %s.%s on %s: %w", iface, name, path, call.Err)
	}
	return nil
}

func (b *busTransport) Call(ctx context.Context, path dbus.ObjectPath, method string) error {
	obj := b.conn.Object(busName, path)
	if call := obj.CallWithContext(ctx, method, 0); call.Err != nil {
		return fmt.Errorf("%s on %s: %w", method, path, call.Err)
	}
	return nil
}

func (b *busTransport) Close() error {
	return b.conn.Close()
}
