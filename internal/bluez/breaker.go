package bluez

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 15 * time.Second
)

// breakerTransport routes every bus call through a circuit breaker.
//
// Error replies from bluetoothd (org.bluez.Error.*) and calls abandoned by
// the caller do not count as failures. Timeouts and connection errors do.
// A call whose context is already done never reaches the bus or the breaker.
type breakerTransport struct {
	inner   transport
	breaker *gobreaker.CircuitBreaker[any]
}

func newBreakerTransport(inner transport, failures uint32, timeout time.Duration, logger Logger) *breakerTransport {
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "bluez",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			var reply dbus.Error
			return err == nil || errors.As(err, &reply)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})

	return &breakerTransport{inner: inner, breaker: cb}
}

// State returns the current breaker state.
func (b *breakerTransport) State() gobreaker.State {
	return b.breaker.State()
}

func (b *breakerTransport) execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return v, err
}

func (b *breakerTransport) ManagedObjects(ctx context.Context) (objectMap, error) {
	v, err := b.execute(ctx, func() (any, error) { return b.inner.ManagedObjects(ctx) })
	if err != nil {
		return nil, err
	}
	objects, _ := v.(objectMap)
	return objects, nil
}

func (b *breakerTransport) GetProperty(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	v, err := b.execute(ctx, func() (any, error) { return b.inner.GetProperty(ctx, path, iface, name) })
	if err != nil {
		return dbus.Variant{}, err
	}
	variant, _ := v.(dbus.Variant)
	return variant, nil
}

func (b *breakerTransport) SetProperty(ctx context.Context, path dbus.ObjectPath, iface, name string, value any) error {
	_, err := b.execute(ctx, func() (any, error) { return nil, b.inner.SetProperty(ctx, path, iface, name, value) })
	return err
}

func (b *breakerTransport) Call(ctx context.Context, path dbus.ObjectPath, method string) error {
	_, err := b.execute(ctx, func() (any, error) { return nil, b.inner.Call(ctx, path, method) })
	return err
}

func (b *breakerTransport) Close() error {
	return b.inner.Close()
}
