package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bluewidget/bluewidget/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "bluewidget-test",
		},
		QoS:         1,
		TopicPrefix: "bw",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"devices", Topics{Prefix: "bw"}.Devices(), "bw/devices"},
		{"command event", Topics{Prefix: "bw"}.CommandEvent(), "bw/event/command"},
		{"status", Topics{Prefix: "bw"}.SystemStatus(), "bw/system/status"},
		{"refresh", Topics{Prefix: "bw"}.CommandRefresh(), "bw/command/refresh"},
		{"power", Topics{Prefix: "bw"}.CommandPower(), "bw/command/power"},
		{"device", Topics{Prefix: "bw"}.DeviceCommand("AA:BB:CC:DD:EE:FF", "pair"), "bw/command/device/AA:BB:CC:DD:EE:FF/pair"},
		{"wildcard", Topics{Prefix: "bw"}.AllDeviceCommands(), "bw/command/device/+/+"},
		{"default prefix", Topics{}.Devices(), "bluewidget/devices"},
		{"trailing slash", Topics{Prefix: "home/bt/"}.Devices(), "home/bt/devices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDeviceCommand(t *testing.T) {
	topics := Topics{Prefix: "bw"}
	tests := []struct {
		topic    string
		wantID   string
		wantKind string
		wantOK   bool
	}{
		{"bw/command/device/AA:BB:CC:DD:EE:FF/connect", "AA:BB:CC:DD:EE:FF", "connect", true},
		{topics.DeviceCommand("11:22:33:44:55:66", "pair"), "11:22:33:44:55:66", "pair", true},
		{"bw/command/device/AA:BB:CC:DD:EE:FF", "", "", false},
		{"bw/command/device//connect", "", "", false},
		{"bw/command/device/AA/connect/extra", "", "", false},
		{"other/command/device/AA/connect", "", "", false},
		{"bw/command/refresh", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, kind, ok := topics.ParseDeviceCommand(tt.topic)
			if ok != tt.wantOK || id != tt.wantID || kind != tt.wantKind {
				t.Errorf("ParseDeviceCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, id, kind, ok, tt.wantID, tt.wantKind, tt.wantOK)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "user", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v, want [tcp://localhost:1883]", opts.Servers)
	}
	if opts.ClientID != "bluewidget-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "user" || opts.Password != "secret" {
		t.Errorf("credentials not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig should be set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "bw"}, "bluewidget-test")

	if !opts.WillEnabled || opts.WillTopic != "bw/system/status" || !opts.WillRetained {
		t.Fatalf("will = (%v, %q, retained %v)", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if status.Status != "offline" || status.ClientID != "bluewidget-test" || status.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", status)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 0, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("bw/x", nil, 3, false), ErrInvalidQoS},
		{"publish offline", c.Publish("bw/x", nil, 1, false), ErrNotConnected},
		{"subscribe offline", c.Subscribe("bw/x", 1, func(string, []byte) error { return nil }), ErrNotConnected},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("err = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Error("failed subscribe must not be tracked")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on unconnected client: %v", err)
	}
}

type capturingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *capturingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *capturingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestDispatchRecoversPanics(t *testing.T) {
	c := newClient(testConfig())
	logger := &capturingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "bw/x", nil)
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "bw/x", nil)

	if len(logger.errors) != 1 {
		t.Errorf("panic logs = %d, want 1", len(logger.errors))
	}
	if len(logger.warns) != 1 {
		t.Errorf("error logs = %d, want 1", len(logger.warns))
	}
}
