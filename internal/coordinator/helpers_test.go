package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluewidget/bluewidget/internal/device"
)

// mockGateway records every call and detects overlapping calls.
type mockGateway struct {
	mu       sync.Mutex
	calls    []string
	devices  []device.Record
	powered  bool
	failWith error

	// listGate, when set, blocks ListDevices until a value is received.
	listGate chan struct{}
	// delay is added to every call.
	delay time.Duration
	// panicOn makes the named call panic.
	panicOn string

	inFlight   atomic.Int32
	overlapped atomic.Bool
	listCount  atomic.Int32
}

func (m *mockGateway) enter(name string) {
	if m.inFlight.Add(1) > 1 {
		m.overlapped.Store(true)
	}
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.panicOn == name {
		m.inFlight.Add(-1)
		panic("boom: " + name)
	}
}

func (m *mockGateway) leave() { m.inFlight.Add(-1) }

func (m *mockGateway) IsPowered(context.Context) bool {
	m.enter("is_powered")
	defer m.leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.powered
}

func (m *mockGateway) SetPowered(_ context.Context, on bool) error {
	name := "power_off"
	if on {
		name = "power_on"
	}
	m.enter(name)
	defer m.leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.powered = on
	return nil
}

func (m *mockGateway) ListDevices(context.Context) []device.Record {
	m.enter("list")
	defer m.leave()
	m.listCount.Add(1)
	if m.listGate != nil {
		<-m.listGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.Record, len(m.devices))
	copy(out, m.devices)
	return out
}

func (m *mockGateway) Connect(_ context.Context, id string) error {
	return m.deviceCall("connect", id)
}

func (m *mockGateway) Disconnect(_ context.Context, id string) error {
	return m.deviceCall("disconnect", id)
}

func (m *mockGateway) Pair(_ context.Context, id string) error {
	return m.deviceCall("pair", id)
}

func (m *mockGateway) deviceCall(name, id string) error {
	m.enter(name + " " + id)
	defer m.leave()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failWith
}

func (m *mockGateway) setDevices(devices ...device.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
}

func (m *mockGateway) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// staticSettings is a SettingsSource with a switchable flag.
type staticSettings struct {
	enabled atomic.Bool
}

func newSettings(enabled bool) *staticSettings {
	s := &staticSettings{}
	s.enabled.Store(enabled)
	return s
}

func (s *staticSettings) FunctionalityEnabled() bool { return s.enabled.Load() }

// recordingAudit collects audit results.
type recordingAudit struct {
	mu      sync.Mutex
	results []CommandResult
}

func (a *recordingAudit) RecordCommand(_ context.Context, r CommandResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, r)
	return nil
}

func (a *recordingAudit) outcomes() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Outcome, 0, len(a.results))
	for _, r := range a.results {
		out = append(out, r.Outcome)
	}
	return out
}

var errBackend = errors.New("backend said no")

// waitFor polls cond until it is true or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// newTestCoordinator starts a coordinator and registers cleanup.
func newTestCoordinator(t *testing.T, gw Gateway, settings SettingsSource, opts Options) *Coordinator {
	t.Helper()
	if opts.CallTimeout == 0 {
		opts.CallTimeout = time.Second
	}
	c := New(gw, settings, opts)
	c.Start(context.Background())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func names(records []device.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}
