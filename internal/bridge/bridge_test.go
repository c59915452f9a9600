package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/infrastructure/mqtt"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// mockMQTTClient records publishes and exposes subscribed handlers.
type mockMQTTClient struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	onConnect  func()
	publishErr error
	subErr     error
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, payload, qos, retained})
	return nil
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return m.subErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) SetOnConnect(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = callback
}

func (m *mockMQTTClient) deliver(t *testing.T, pattern, topic string, payload []byte) error {
	t.Helper()
	m.mu.Lock()
	h, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed for %s", pattern)
	}
	return h(topic, payload)
}

func (m *mockMQTTClient) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

type deviceCommand struct {
	kind device.CommandKind
	id   string
}

// mockCommander records coordinator requests.
type mockCommander struct {
	mu       sync.Mutex
	refresh  int
	power    []bool
	commands []deviceCommand
	err      error
}

func (m *mockCommander) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh++
}

func (m *mockCommander) TogglePower(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.power = append(m.power, on)
	return m.err
}

func (m *mockCommander) Command(kind device.CommandKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, deviceCommand{kind, id})
	return m.err
}

var testTopics = mqtt.Topics{Prefix: "bw"}

func newTestBridge(t *testing.T) (*Bridge, *mockMQTTClient, *mockCommander) {
	t.Helper()
	client := newMockMQTTClient()
	cmd := &mockCommander{}
	b, err := New(Options{Client: client, Commander: cmd, Topics: testTopics, QoS: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return b, client, cmd
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{Commander: &mockCommander{}}); err == nil {
		t.Error("expected error without client")
	}
	if _, err := New(Options{Client: newMockMQTTClient()}); err == nil {
		t.Error("expected error without commander")
	}
}

func TestStartSubscribesCommandTopics(t *testing.T) {
	_, client, _ := newTestBridge(t)

	for _, topic := range []string{
		"bw/command/refresh",
		"bw/command/power",
		"bw/command/device/+/+",
	} {
		if _, ok := client.handlers[topic]; !ok {
			t.Errorf("not subscribed to %s", topic)
		}
	}
	if client.onConnect == nil {
		t.Error("reconnect callback not registered")
	}
}

func TestStartSubscribeError(t *testing.T) {
	client := newMockMQTTClient()
	client.subErr = mqtt.ErrNotConnected
	b, err := New(Options{Client: client, Commander: &mockCommander{}, Topics: testTopics})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start err = %v, want ErrNotConnected", err)
	}
}

func TestHandleRefresh(t *testing.T) {
	_, client, cmd := newTestBridge(t)

	if err := client.deliver(t, "bw/command/refresh", "bw/command/refresh", nil); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if cmd.refresh != 1 {
		t.Errorf("refresh count = %d, want 1", cmd.refresh)
	}
}

func TestHandlePower(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []bool
		wantErr error
	}{
		{"on", `{"powered": true}`, []bool{true}, nil},
		{"off", `{"powered": false}`, []bool{false}, nil},
		{"missing field", `{}`, nil, ErrInvalidPayload},
		{"not json", `on`, nil, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client, cmd := newTestBridge(t)

			err := client.deliver(t, "bw/command/power", "bw/command/power", []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if len(cmd.power) != len(tt.want) {
				t.Fatalf("power calls = %v, want %v", cmd.power, tt.want)
			}
			for i := range tt.want {
				if cmd.power[i] != tt.want[i] {
					t.Errorf("power[%d] = %v, want %v", i, cmd.power[i], tt.want[i])
				}
			}
		})
	}
}

func TestHandleDeviceCommand(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    *deviceCommand
		wantErr error
	}{
		{"connect", "bw/command/device/AA:BB:CC:DD:EE:FF/connect", &deviceCommand{device.CommandConnect, "AA:BB:CC:DD:EE:FF"}, nil},
		{"lower case id", "bw/command/device/aa:bb:cc:dd:ee:ff/pair", &deviceCommand{device.CommandPair, "AA:BB:CC:DD:EE:FF"}, nil},
		{"disconnect", "bw/command/device/11:22:33:44:55:66/disconnect", &deviceCommand{device.CommandDisconnect, "11:22:33:44:55:66"}, nil},
		{"unknown kind", "bw/command/device/AA:BB:CC:DD:EE:FF/forget", nil, device.ErrUnknownCommand},
		{"bad id", "bw/command/device/not-an-address/connect", nil, device.ErrInvalidID},
		{"bad topic", "bw/command/device/AA:BB:CC:DD:EE:FF", nil, ErrInvalidTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client, cmd := newTestBridge(t)

			err := client.deliver(t, "bw/command/device/+/+", tt.topic, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if len(cmd.commands) != 0 {
					t.Errorf("commands = %v, want none", cmd.commands)
				}
				return
			}
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if len(cmd.commands) != 1 || cmd.commands[0] != *tt.want {
				t.Errorf("commands = %v, want [%v]", cmd.commands, *tt.want)
			}
		})
	}
}

func TestHandleDeviceCommandPropagatesQueueFull(t *testing.T) {
	_, client, cmd := newTestBridge(t)
	cmd.err = coordinator.ErrQueueFull

	err := client.deliver(t, "bw/command/device/+/+", "bw/command/device/AA:BB:CC:DD:EE:FF/connect", nil)
	if !errors.Is(err, coordinator.ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestPublishDevicesRetained(t *testing.T) {
	b, client, _ := newTestBridge(t)

	records := []device.Record{
		device.NewRecord("AA:BB:CC:DD:EE:FF", "WF-C700", "audio-headset", true, true),
		device.NewRecord("11:22:33:44:55:66", "", "", false, false),
	}
	b.PublishDevices(7, records)

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.topic != "bw/devices" || !m.retained || m.qos != 1 {
		t.Errorf("message = %s retained=%v qos=%d", m.topic, m.retained, m.qos)
	}

	var got DevicesMessage
	if err := json.Unmarshal(m.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Seq != 7 || len(got.Devices) != 2 {
		t.Fatalf("payload = %+v", got)
	}
	if got.Devices[1].Name != device.UnknownName {
		t.Errorf("second name = %q, want %q", got.Devices[1].Name, device.UnknownName)
	}
}

func TestPublishEmptyDeviceListIsArray(t *testing.T) {
	b, client, _ := newTestBridge(t)
	b.PublishDevices(1, nil)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(client.messages()[0].payload, &raw); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if string(raw["devices"]) != "[]" {
		t.Errorf("devices = %s, want []", raw["devices"])
	}
}

func TestRepublishOnReconnect(t *testing.T) {
	b, client, _ := newTestBridge(t)

	client.onConnect()
	if n := len(client.messages()); n != 0 {
		t.Fatalf("republished %d messages before any list, want 0", n)
	}

	b.PublishDevices(3, []device.Record{device.NewRecord("AA:BB:CC:DD:EE:FF", "Alpha", "", false, true)})
	client.onConnect()

	msgs := client.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if string(msgs[0].payload) != string(msgs[1].payload) || !msgs[1].retained {
		t.Error("reconnect should republish the last retained list unchanged")
	}
}

func TestPublishReport(t *testing.T) {
	b, client, _ := newTestBridge(t)

	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	b.PublishReport(coordinator.CommandReport{
		Op:        coordinator.OpPair,
		DeviceID:  "AA:BB:CC:DD:EE:FF",
		Simulated: true,
		At:        at,
	})

	msgs := client.messages()
	if len(msgs) != 1 || msgs[0].topic != "bw/event/command" || msgs[0].retained {
		t.Fatalf("messages = %+v", msgs)
	}
	var got ReportMessage
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Op != coordinator.OpPair || !got.Simulated || !got.At.Equal(at) {
		t.Errorf("report = %+v", got)
	}
}

func TestPublishErrorIsAbsorbed(t *testing.T) {
	b, client, _ := newTestBridge(t)
	client.publishErr = mqtt.ErrNotConnected

	b.PublishDevices(1, nil)
	b.PublishReport(coordinator.CommandReport{Op: coordinator.OpPowerOn})

	if n := len(client.messages()); n != 0 {
		t.Errorf("published %d messages, want 0", n)
	}
}

// stubGateway is a minimal coordinator.Gateway for the Attach test.
type stubGateway struct{}

func (stubGateway) IsPowered(context.Context) bool           { return true }
func (stubGateway) SetPowered(context.Context, bool) error   { return nil }
func (stubGateway) Connect(context.Context, string) error    { return nil }
func (stubGateway) Disconnect(context.Context, string) error { return nil }
func (stubGateway) Pair(context.Context, string) error       { return nil }
func (stubGateway) ListDevices(context.Context) []device.Record {
	return []device.Record{
		device.NewRecord("11:22:33:44:55:66", "Alpha", "", false, false),
		device.NewRecord("AA:BB:CC:DD:EE:FF", "WF-C700", "audio-headset", false, false),
	}
}

type enabledSettings struct{}

func (enabledSettings) FunctionalityEnabled() bool { return true }

func TestAttachPublishesForegroundOutput(t *testing.T) {
	b, client, _ := newTestBridge(t)

	c := coordinator.New(stubGateway{}, enabledSettings{}, coordinator.Options{})
	t.Cleanup(func() { _ = c.Close() })
	fg := coordinator.NewForeground(c)
	b.Attach(fg)

	c.Refresh()
	deadline := time.Now().Add(2 * time.Second)
	for !fg.Tick() {
		if time.Now().After(deadline) {
			t.Fatal("no snapshot delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msgs := client.messages()
	if len(msgs) != 1 || msgs[0].topic != "bw/devices" {
		t.Fatalf("messages = %+v", msgs)
	}
	var got DevicesMessage
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Seq != fg.LastSeq() {
		t.Errorf("seq = %d, want %d", got.Seq, fg.LastSeq())
	}
	if len(got.Devices) != 2 || got.Devices[0].Name != "WF-C700" {
		t.Errorf("devices = %+v, want WF-C700 first", got.Devices)
	}
}
