package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/infrastructure/config"
	"github.com/bluewidget/bluewidget/internal/infrastructure/logging"
	"github.com/bluewidget/bluewidget/internal/settings"
)

// fakeBackend is an in-memory gateway.
type fakeBackend struct {
	mu      sync.Mutex
	devices []device.Record
	powered bool
	calls   []string
	err     error
	closed  bool
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeBackend) IsPowered(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.powered
}

func (f *fakeBackend) SetPowered(_ context.Context, on bool) error {
	if err := f.record("set_powered"); err != nil {
		return err
	}
	f.mu.Lock()
	f.powered = on
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) ListDevices(context.Context) []device.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]device.Record(nil), f.devices...)
}

func (f *fakeBackend) Connect(_ context.Context, id string) error    { return f.record("connect " + id) }
func (f *fakeBackend) Disconnect(_ context.Context, id string) error { return f.record("disconnect " + id) }
func (f *fakeBackend) Pair(_ context.Context, id string) error       { return f.record("pair " + id) }

func (f *fakeBackend) AdapterPath() string  { return "/org/bluez/hci0" }
func (f *fakeBackend) BreakerState() string { return "closed" }

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// useBackend swaps openBackend for the duration of the test.
func useBackend(t *testing.T, b backend, err error) {
	t.Helper()
	original := openBackend
	openBackend = func(context.Context, *config.Config, *logging.Logger) (backend, error) {
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	t.Cleanup(func() { openBackend = original })
}

// testEnv writes a quiet config and a settings file, returning the base
// arguments that select them.
func testEnv(t *testing.T, functionalityEnabled bool) []string {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	configContent := `
logging:
  level: error
  output: discard
bluez:
  call_timeout: 500
security:
  jwt:
    secret: "0123456789abcdef0123456789abcdef"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	settingsPath := filepath.Join(dir, "settings.json")
	settingsContent := `{"functionality_enabled": ` + boolString(functionalityEnabled) + `}`
	if err := os.WriteFile(settingsPath, []byte(settingsContent), 0o600); err != nil {
		t.Fatalf("failed to write test settings: %v", err)
	}

	return []string{"--config", configPath, "--settings", settingsPath}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, args, &out)
	return out.String(), err
}

// TestRun_InvalidConfig verifies run fails when the config file cannot be parsed.
func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bluez: [not, a, map"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := runArgs(t, "--config", path, "settings", "path")
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("err = %v, want loading config error", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if _, err := runArgs(t, "frobnicate"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestSettingsPathAndShow(t *testing.T) {
	args := testEnv(t, false)

	out, err := runArgs(t, append(args, "settings", "path")...)
	if err != nil {
		t.Fatalf("settings path: %v", err)
	}
	if got := strings.TrimSpace(out); got != args[3] {
		t.Errorf("path = %q, want %q", got, args[3])
	}

	out, err = runArgs(t, append(args, "settings", "show")...)
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}
	var shown map[string]any
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if shown["functionality_enabled"] != false {
		t.Errorf("functionality_enabled = %v, want false", shown["functionality_enabled"])
	}
	if shown["refresh_interval"] != float64(5000) {
		t.Errorf("refresh_interval = %v, want default 5000", shown["refresh_interval"])
	}
}

func TestSettingsSet(t *testing.T) {
	args := testEnv(t, false)

	out, err := runArgs(t, append(args, "settings", "set", "theme", "dark")...)
	if err != nil {
		t.Fatalf("settings set: %v", err)
	}
	if got := strings.TrimSpace(out); got != "theme = dark" {
		t.Errorf("output = %q", got)
	}

	data, err := os.ReadFile(args[3])
	if err != nil {
		t.Fatal(err)
	}
	var saved map[string]any
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if saved["theme"] != "dark" {
		t.Errorf("saved theme = %v, want dark", saved["theme"])
	}
	if saved["functionality_enabled"] != false {
		t.Errorf("functionality_enabled = %v, want false kept", saved["functionality_enabled"])
	}
}

func TestSettingsSet_Rejected(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    error
	}{
		{"theme", "neon", settings.ErrInvalidValue},
		{"volume", "11", settings.ErrUnknownKey},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			args := testEnv(t, true)
			before, err := os.ReadFile(args[3])
			if err != nil {
				t.Fatal(err)
			}

			_, err = runArgs(t, append(args, "settings", "set", tt.key, tt.value)...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			after, err := os.ReadFile(args[3])
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(before, after) {
				t.Errorf("settings file rewritten after rejected value: %s", after)
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	args := testEnv(t, true)
	t.Setenv("BLUEWIDGET_DATABASE_PATH", filepath.Join(t.TempDir(), "audit.db"))

	steps := []struct {
		cmd  string
		want string
	}{
		{"status", "pending 20261001_120000"},
		{"up", "migrations applied"},
		{"status", "up to date"},
		{"down", "rolled back"},
		{"status", "pending 20261001_120000"},
	}
	for _, step := range steps {
		out, err := runArgs(t, append(args, "migrate", step.cmd)...)
		if err != nil {
			t.Fatalf("migrate %s: %v", step.cmd, err)
		}
		if !strings.Contains(out, step.want) {
			t.Errorf("migrate %s output = %q, want %q", step.cmd, out, step.want)
		}
	}
}

func TestDevices(t *testing.T) {
	b := &fakeBackend{devices: []device.Record{
		device.NewRecord("AA:AA:AA:AA:AA:03", "Zeta", "phone", false, false),
		device.NewRecord("AA:AA:AA:AA:AA:01", "Alpha", "input-mouse", true, true),
		device.NewRecord("AA:AA:AA:AA:AA:02", "WF-C700", "audio-headset", false, true),
	}}
	useBackend(t, b, nil)
	args := testEnv(t, true)

	out, err := runArgs(t, append(args, "devices", "--json")...)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	var records []device.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}

	want := []string{"WF-C700", "Alpha", "Zeta"}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, name := range want {
		if records[i].Name != name {
			t.Errorf("records[%d] = %q, want %q", i, records[i].Name, name)
		}
	}

	out, err = runArgs(t, append(args, "devices")...)
	if err != nil {
		t.Fatalf("devices table: %v", err)
	}
	if !strings.Contains(out, "AA:AA:AA:AA:AA:02") || !strings.Contains(out, "CONNECTED") {
		t.Errorf("table output = %q", out)
	}
	if !b.closed {
		t.Error("backend not closed")
	}
}

func TestPreferredDeviceFromConfig(t *testing.T) {
	b := &fakeBackend{devices: []device.Record{
		device.NewRecord("AA:AA:AA:AA:AA:01", "Alpha", "", false, true),
		device.NewRecord("AA:AA:AA:AA:AA:02", "Keyboard", "", false, true),
	}}
	useBackend(t, b, nil)
	args := testEnv(t, true)
	t.Setenv("BLUEWIDGET_PREFERRED_DEVICE", "Keyboard")

	out, err := runArgs(t, append(args, "devices", "--json")...)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	var records []device.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Name != "Keyboard" {
		t.Errorf("records = %+v, want Keyboard first", records)
	}
}

func TestPower(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		arg       string
		wantOut   string
		wantCalls int
	}{
		{"real on", true, "on", "power_on: ok", 1},
		{"real off", true, "off", "power_off: ok", 1},
		{"simulated", false, "on", "power_on: simulated", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			useBackend(t, b, nil)
			args := testEnv(t, tt.enabled)

			out, err := runArgs(t, append(args, "power", tt.arg)...)
			if err != nil {
				t.Fatalf("power: %v", err)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output = %q, want %q", out, tt.wantOut)
			}
			if n := len(b.callLog()); n != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestPower_InvalidArg(t *testing.T) {
	useBackend(t, &fakeBackend{}, nil)
	args := testEnv(t, true)
	if _, err := runArgs(t, append(args, "power", "maybe")...); err == nil {
		t.Fatal("expected error for invalid power argument")
	}
}

func TestDeviceCommands(t *testing.T) {
	tests := []struct {
		args     []string
		wantCall string
	}{
		{[]string{"connect", "aa:bb:cc:dd:ee:ff"}, "connect AA:BB:CC:DD:EE:FF"},
		{[]string{"disconnect", "AA:BB:CC:DD:EE:FF"}, "disconnect AA:BB:CC:DD:EE:FF"},
		{[]string{"pair", "AA:BB:CC:DD:EE:FF"}, "pair AA:BB:CC:DD:EE:FF"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			b := &fakeBackend{}
			useBackend(t, b, nil)
			args := testEnv(t, true)

			if _, err := runArgs(t, append(args, tt.args...)...); err != nil {
				t.Fatalf("%v: %v", tt.args, err)
			}
			calls := b.callLog()
			if len(calls) != 1 || calls[0] != tt.wantCall {
				t.Errorf("calls = %v, want [%s]", calls, tt.wantCall)
			}
		})
	}
}

func TestDeviceCommand_Failure(t *testing.T) {
	b := &fakeBackend{err: errors.New("org.bluez.Error.Failed")}
	useBackend(t, b, nil)
	args := testEnv(t, true)

	_, err := runArgs(t, append(args, "connect", "AA:BB:CC:DD:EE:FF")...)
	if !errors.Is(err, coordinator.ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
}

func TestDeviceCommand_InvalidID(t *testing.T) {
	b := &fakeBackend{}
	useBackend(t, b, nil)
	args := testEnv(t, true)

	_, err := runArgs(t, append(args, "pair", "not-an-address")...)
	if !errors.Is(err, device.ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
	if len(b.callLog()) != 0 {
		t.Error("backend called for invalid id")
	}
}

func TestBackendUnavailable(t *testing.T) {
	useBackend(t, nil, coordinator.ErrBackendUnavailable)
	args := testEnv(t, true)

	_, err := runArgs(t, append(args, "devices")...)
	if !errors.Is(err, coordinator.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if !strings.Contains(err.Error(), "bluetoothd") {
		t.Errorf("err = %q, want a hint about bluetoothd", err)
	}
}

func TestToken(t *testing.T) {
	args := testEnv(t, true)

	out, err := runArgs(t, append(args, "token", "--subject", "ha", "--ttl", "1h")...)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if parts := strings.Split(strings.TrimSpace(out), "."); len(parts) != 3 {
		t.Errorf("token %q is not a JWT", out)
	}
}

func TestToken_NoSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv("BLUEWIDGET_JWT_SECRET", "")
	if _, err := runArgs(t, "--config", path, "token"); err == nil {
		t.Fatal("expected error without a JWT secret")
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	o := &globalOptions{}
	if got := o.resolveConfigPath(); got != defaultConfigPath {
		t.Errorf("default = %q", got)
	}

	t.Setenv(configEnv, "/etc/bluewidget.yaml")
	if got := o.resolveConfigPath(); got != "/etc/bluewidget.yaml" {
		t.Errorf("env = %q", got)
	}

	o.configPath = "flag.yaml"
	if got := o.resolveConfigPath(); got != "flag.yaml" {
		t.Errorf("flag = %q", got)
	}
}
