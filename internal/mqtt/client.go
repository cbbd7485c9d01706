// Package mqtt owns the broker connection: one persistent client with
// a fixed set of all-rooms subscriptions, inbound topic parsing and
// room filtering, and best-effort command publishing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"semsview/internal/model"
)

// DefaultReconnectDelay is the fixed interval between reconnect
// attempts. There is no backoff and no attempt cap; the dashboard
// keeps knocking until the broker is back.
const DefaultReconnectDelay = 5 * time.Second

const commandQoS = 1

// ErrNotConnected is returned by SendCommand while the broker is
// unreachable. The command is dropped, not queued; callers treat
// delivery as best-effort.
var ErrNotConnected = errors.New("mqtt client is not connected")

// Config holds MQTT client configuration.
type Config struct {
	BrokerURL      string // broker address, e.g. "ssl://host:8884"
	ClientID       string // unique client id (generated if empty)
	Username       string
	Password       string
	ReconnectDelay time.Duration // fixed retry interval (default 5s)
}

// RoomSource supplies the currently active room. The handler re-reads
// it on every message instead of capturing it, so a room switch takes
// effect for in-flight traffic immediately.
type RoomSource interface {
	CurrentRoom() string
}

// Handler receives parsed, room-filtered inbound traffic and
// connectivity changes.
type Handler interface {
	HandleSensor(room string, sensor model.SensorKind, value float64, ts string)
	HandleReported(room string, device model.Device, rep model.Reported)
	HandleAutoMode(auto bool)
	HandleTransportStatus(connected bool)
}

// Client wraps the paho client with the dashboard's subscription set,
// inbound dispatch and reconnect policy.
type Client struct {
	client  paho.Client
	cfg     Config
	rooms   RoomSource
	handler Handler
	logger  *log.Logger

	mu     sync.Mutex
	closed bool
	retry  *time.Timer
}

// New creates a broker client. The connection is not opened until
// Start is called.
func New(cfg Config, rooms RoomSource, handler Handler, logger *log.Logger) (*Client, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "semsview-" + uuid.NewString()[:8]
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	c := &Client{
		cfg:     cfg,
		rooms:   rooms,
		handler: handler,
		logger:  logger,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	// Reconnects are scheduled by hand at a fixed interval, so paho's
	// own backoff stays off.
	opts.SetAutoReconnect(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connection lost: %v", err)
		}
		c.handler.HandleTransportStatus(false)
		c.scheduleReconnect()
	})

	c.client = paho.NewClient(opts)
	return c, nil
}

// Start begins connecting in the background. A failed attempt
// schedules another at the fixed interval; Start never fails hard.
func (c *Client) Start() {
	go c.connect()
}

// Close shuts the connection down cleanly and cancels any pending
// reconnect. No retry is scheduled for a deliberate disconnect.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.mu.Unlock()

	c.client.Disconnect(250)
	if c.logger != nil {
		c.logger.Printf("[MQTT] Disconnected from broker")
	}
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// SendCommand serializes payload to JSON and publishes it. While
// disconnected the command is dropped and a reconnect attempt is
// kicked off instead.
func (c *Client) SendCommand(topic string, payload interface{}) error {
	if !c.client.IsConnected() {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Not connected, dropping command to %s", topic)
		}
		c.scheduleReconnect()
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	token := c.client.Publish(topic, commandQoS, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish command: %w", token.Error())
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] TX %s -> %s", topic, data)
	}
	return nil
}

func (c *Client) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Printf("[MQTT] Connecting to broker: %s", c.cfg.BrokerURL)
	}

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connect failed: %v", token.Error())
		}
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms a single fixed-delay retry. An already armed
// timer is rearmed, so overlapping triggers collapse into one attempt.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.retry != nil {
		c.retry.Stop()
	}
	c.retry = time.AfterFunc(c.cfg.ReconnectDelay, c.connect)
}

// subscriptionFilters is the fixed set issued on every connect. The
// filters are pairwise disjoint; a concrete topic matches at most one
// of them, so the broker delivers each message to onMessage once.
var subscriptionFilters = []string{
	SubscribeSensors,
	SubscribeActuators,
	SubscribeReported,
	TopicAutoMode,
}

// onConnect (re)issues the fixed subscription set. Room scoping
// happens in the message handler, not at the broker.
func (c *Client) onConnect(client paho.Client) {
	if c.logger != nil {
		c.logger.Printf("[MQTT] Connected as %s", c.cfg.ClientID)
	}

	for _, filter := range subscriptionFilters {
		token := client.Subscribe(filter, commandQoS, c.onMessage)
		if token.Wait() && token.Error() != nil {
			if c.logger != nil {
				c.logger.Printf("[MQTT] Subscribe %s failed: %v", filter, token.Error())
			}
		}
	}

	c.handler.HandleTransportStatus(true)
}

// onMessage parses and dispatches one inbound message. Messages for
// rooms other than the active one are discarded without side effects;
// malformed topics or payloads are logged and dropped, never fatal.
func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	raw := msg.Payload()

	if msg.Topic() == TopicAutoMode {
		auto, err := ParseAutoMode(raw)
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("[MQTT] Dropping auto-mode message: %v", err)
			}
			return
		}
		c.handler.HandleAutoMode(auto)
		return
	}

	topic, err := ParseTopic(msg.Topic())
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Dropping message: %v", err)
		}
		return
	}

	if topic.Room != c.rooms.CurrentRoom() {
		return
	}

	switch topic.Category {
	case CategorySensors:
		sensor := model.SensorKind(topic.Name)
		if !model.KnownSensor(sensor) {
			if c.logger != nil {
				c.logger.Printf("[MQTT] Dropping reading for unknown sensor %q", topic.Name)
			}
			return
		}
		payload, err := ParseSensorPayload(raw)
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("[MQTT] Dropping sensor message on %s: %v", msg.Topic(), err)
			}
			return
		}
		c.handler.HandleSensor(topic.Room, sensor, payload.Value, payload.TS)

	case CategoryActuators:
		// Plain actuator messages are command echoes; only device
		// acknowledgments feed back into the UI.
		if !topic.Reported {
			return
		}
		device := model.Device(topic.Name)
		if !model.KnownDevice(device) {
			if c.logger != nil {
				c.logger.Printf("[MQTT] Dropping ack for unknown device %q", topic.Name)
			}
			return
		}
		rep, err := ParseReported(raw)
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("[MQTT] Dropping ack on %s: %v", msg.Topic(), err)
			}
			return
		}
		c.handler.HandleReported(topic.Room, device, rep)
	}
}
