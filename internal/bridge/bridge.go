package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetOnConnect(callback func())
}

// Commander accepts coordinator requests. Satisfied by *coordinator.Coordinator.
type Commander interface {
	Refresh()
	TogglePower(on bool) error
	Command(kind device.CommandKind, id string) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge.
type Options struct {
	Client    MQTTClient
	Commander Commander
	Topics    mqtt.Topics
	QoS       byte
}

// Bridge connects the coordinator to MQTT.
type Bridge struct {
	client MQTTClient
	cmd    Commander
	topics mqtt.Topics
	qos    byte
	logger Logger

	// last is the most recent devices payload, republished on reconnect.
	mu   sync.Mutex
	last []byte
}

// New creates a Bridge. Call Start to subscribe and Attach to receive
// coordinator output.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Commander == nil {
		return nil, fmt.Errorf("commander is required")
	}
	return &Bridge{
		client: opts.Client,
		cmd:    opts.Commander,
		topics: opts.Topics,
		qos:    opts.QoS,
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to the command topics.
func (b *Bridge) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.CommandRefresh(), b.handleRefresh},
		{b.topics.CommandPower(), b.handlePower},
		{b.topics.AllDeviceCommands(), b.handleDeviceCommand},
	}
	for _, s := range subs {
		if err := b.client.Subscribe(s.topic, b.qos, s.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		b.logger.Info("subscribed to commands", "topic", s.topic)
	}

	b.client.SetOnConnect(b.republish)
	return nil
}

// Attach registers the bridge as a subscriber of fg.
func (b *Bridge) Attach(fg *coordinator.Foreground) {
	fg.SubscribeDevices(func(records []device.Record) {
		b.PublishDevices(fg.LastSeq(), records)
	})
	fg.SubscribeReports(b.PublishReport)
}

// PublishDevices publishes a retained device list.
func (b *Bridge) PublishDevices(seq uint64, records []device.Record) {
	if records == nil {
		records = []device.Record{}
	}
	payload, err := json.Marshal(DevicesMessage{
		Seq:         seq,
		Devices:     records,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		b.logger.Error("failed to marshal devices", "error", err)
		return
	}

	b.mu.Lock()
	b.last = payload
	b.mu.Unlock()

	if err := b.client.Publish(b.topics.Devices(), payload, b.qos, true); err != nil {
		b.logger.Error("failed to publish devices", "error", err)
	}
}

// PublishReport publishes a command report event.
func (b *Bridge) PublishReport(r coordinator.CommandReport) {
	payload, err := json.Marshal(newReportMessage(r))
	if err != nil {
		b.logger.Error("failed to marshal report", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.CommandEvent(), payload, b.qos, false); err != nil {
		b.logger.Error("failed to publish report", "error", err)
	}
}

// republish restores the retained device list after a reconnect, in case
// the broker lost it.
func (b *Bridge) republish() {
	b.mu.Lock()
	payload := b.last
	b.mu.Unlock()

	if payload == nil {
		return
	}
	if err := b.client.Publish(b.topics.Devices(), payload, b.qos, true); err != nil {
		b.logger.Error("failed to republish devices", "error", err)
	}
}

// =============================================================================
// Inbound commands
// =============================================================================

func (b *Bridge) handleRefresh(_ string, _ []byte) error {
	b.logger.Debug("refresh requested over MQTT")
	b.cmd.Refresh()
	return nil
}

func (b *Bridge) handlePower(_ string, payload []byte) error {
	var msg PowerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.Powered == nil {
		return fmt.Errorf("%w: missing \"powered\"", ErrInvalidPayload)
	}

	b.logger.Info("power requested over MQTT", "powered", *msg.Powered)
	return b.cmd.TogglePower(*msg.Powered)
}

func (b *Bridge) handleDeviceCommand(topic string, _ []byte) error {
	id, rawKind, ok := b.topics.ParseDeviceCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	kind, err := device.ParseCommandKind(rawKind)
	if err != nil {
		return err
	}
	addr, err := device.NormaliseID(id)
	if err != nil {
		return err
	}

	b.logger.Info("device command received over MQTT", "command", kind, "device_id", addr)
	return b.cmd.Command(kind, addr)
}
