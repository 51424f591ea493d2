package mqtt

import (
	"context"
	"fmt"
	"maps"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/rabbitlink/internal/infrastructure/config"
)

// Logger receives handler failures. *slog.Logger and *logging.Logger satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is called for every message on a subscribed topic.
// paho runs handlers on its own goroutines; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client is the MQTT side of the status mirror.
//
// Subscriptions and retained payloads are remembered and replayed whenever
// paho reconnects, so the mirror's retained view on the broker survives an
// outage. The zero Client is disconnected and rejects every operation with
// ErrNotConnected. Methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	mu            sync.RWMutex
	connected     bool
	subscriptions map[string]subscription
	retained      map[string][]byte
	onConnect     func()
	onDisconnect  func(err error)
	logger        Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker described by cfg and waits up to
// defaultConnectTimeout for the first connection.
//
// The client registers an offline LWT on its status topic and keeps
// reconnecting in the background after the first success.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect handler runs asynchronously and may not have fired yet.
	c.setConnected(true)

	return c, nil
}

// Topics returns the topic builder for this client's prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// ClientID returns the configured MQTT client ID.
func (c *Client) ClientID() string {
	return c.cfg.Broker.ClientID
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// onConnected replays subscriptions and retained payloads, then notifies.
// It runs on the first connect and after every reconnect.
func (c *Client) onConnected() {
	c.mu.Lock()
	c.connected = true
	subs := maps.Clone(c.subscriptions)
	retained := maps.Clone(c.retained)
	callback := c.onConnect
	c.mu.Unlock()

	for topic, sub := range subs {
		c.client.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
	}

	// Replace the LWT the broker may have published while we were away.
	// Without a recorded status the mirror announces itself as online.
	qos := byte(c.cfg.QoS)
	statusTopic := c.topics.Status(c.ClientID())
	if _, ok := retained[statusTopic]; !ok {
		c.client.Publish(statusTopic, qos, true,
			buildStatusPayload(StatusMessage{Status: StatusOnline, ClientID: c.ClientID()}))
	}
	for topic, payload := range retained {
		c.client.Publish(topic, qos, true, payload)
	}

	if callback != nil {
		callback()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	callback := c.onDisconnect
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// Close publishes a retained "offline" status with reason graceful_shutdown,
// which distinguishes a clean stop from the LWT, then disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload := buildStatusPayload(StatusMessage{
			Status:   StatusOffline,
			ClientID: c.ClientID(),
			Reason:   "graceful_shutdown",
		})
		c.client.Publish(c.topics.Status(c.ClientID()), byte(c.cfg.QoS), true, payload).
			WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// HealthCheck reports ErrNotConnected while paho is reconnecting.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the client is connected to the broker.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback run after the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger for handler errors and panics.
// Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// dispatch adapts handler to paho, recovering panics and logging errors.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.mu.RLock()
		logger := c.logger
		c.mu.RUnlock()

		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && logger != nil {
			logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
