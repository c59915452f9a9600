package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bluewidget/bluewidget/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the bluewidget topics.
//
// Subscriptions are remembered and replayed after every reconnect, so the
// bridge subscribes once at startup. All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	connected atomic.Bool

	mu            sync.RWMutex
	subscriptions map[string]subscription
	onConnect     func()
	logger        Logger
}

// Logger is the logging interface used by the client.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler receives a message's topic (wildcards expanded) and payload.
// A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker with an offline LWT and blocks until the first
// connection succeeds or defaultConnectTimeout passes.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.connected.Store(false)
		c.log().Warn("MQTT connection lost", "error", err)
	})

	c.client = pahomqtt.NewClient(opts)
	if err := wait(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed, cfg.Broker.Host); err != nil {
		return nil, err
	}
	// The on-connect handler may not have run yet.
	c.connected.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:           cfg,
		topics:        Topics{Prefix: cfg.TopicPrefix},
		subscriptions: make(map[string]subscription),
		logger:        noopLogger{},
	}
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics { return c.topics }

// QoS returns the configured default QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS) //nolint:gosec // validated to 0..2 by config
}

// onConnected replays subscriptions, marks the widget online, then runs
// the SetOnConnect callback.
func (c *Client) onConnected() {
	c.connected.Store(true)

	c.mu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrap(sub.handler))
	}
	callback := c.onConnect
	c.mu.RUnlock()

	c.client.Publish(c.topics.SystemStatus(), c.QoS(), true,
		buildStatusPayload("online", c.cfg.Broker.ClientID, ""))

	if callback != nil {
		callback()
	}
}

// Close publishes a retained offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(c.topics.SystemStatus(), c.QoS(), true,
			buildStatusPayload("offline", c.cfg.Broker.ClientID, "shutdown")).
			WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback run on the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetLogger sets a logger for connection loss and handler failures.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// Publish sends payload to topic and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := c.ready(topic, qos); err != nil {
		return err
	}
	return wait(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed, topic)
}

// Subscribe registers handler for topic. The subscription survives reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := c.ready(topic, qos); err != nil {
		return err
	}
	if err := wait(c.client.Subscribe(topic, qos, c.wrap(handler)), defaultPublishTimeout, ErrSubscribeFailed, topic); err != nil {
		return err
	}

	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Unsubscribe forgets topic and, when connected, unsubscribes at the broker.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return wait(c.client.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed, topic)
}

// SubscriptionCount returns the number of remembered subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions)
}

func (c *Client) ready(topic string, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case !c.IsConnected():
		return ErrNotConnected
	}
	return nil
}

// wait blocks on token and wraps a timeout or failure in sentinel.
func wait(token pahomqtt.Token, timeout time.Duration, sentinel error, target string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %s: timeout after %v", sentinel, target, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", sentinel, target, err)
	}
	return nil
}

func (c *Client) wrap(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs handler, logging a returned error or a recovered panic.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log().Error("MQTT handler panic recovered", "topic", topic, "panic", r)
		}
	}()

	if err := handler(topic, payload); err != nil {
		c.log().Warn("MQTT handler returned error", "topic", topic, "error", err)
	}
}
