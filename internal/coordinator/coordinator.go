package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/guessfleet/internal/game"
	"github.com/nerrad567/guessfleet/internal/infrastructure/mqtt"
)

// MQTTClient is the subscription surface the coordinator needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	SubscribeAsync(topic string, qos byte, handler mqtt.MessageHandler) error
	UnsubscribeAsync(topic string) error
}

// Logger defines the logging interface used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds configuration for creating a Coordinator.
type Options struct {
	// MQTT receives inbound device traffic.
	MQTT MQTTClient

	// Publisher carries challenges and results out. Usually *mqtt.AsyncPublisher.
	Publisher game.Publisher

	Rules  game.Rules
	Topics mqtt.Topics
	QoS    byte
	Logger Logger

	// EngineOptions are passed through to game.NewEngine.
	EngineOptions []game.Option
}

// Stats counts inbound traffic since Start.
type Stats struct {
	Received  uint64 `json:"received"`
	Malformed uint64 `json:"malformed"`
	Unknown   uint64 `json:"unknown"`
	Rejected  uint64 `json:"rejected"`
}

// Coordinator routes fleet MQTT traffic into the game engine.
//
// It subscribes to the connect and disconnect topics on Start and to each
// device's response topic while that device has a session.
type Coordinator struct {
	mqtt   MQTTClient
	topics mqtt.Topics
	qos    byte
	logger Logger
	engine *game.Engine

	received  atomic.Uint64
	malformed atomic.Uint64
	unknown   atomic.Uint64
	rejected  atomic.Uint64

	started  atomic.Bool
	stopOnce sync.Once
}

// New creates a coordinator and its engine.
func New(opts Options) (*Coordinator, error) {
	if opts.MQTT == nil {
		return nil, errors.New("coordinator: MQTT client is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("coordinator: publisher is required")
	}
	if opts.Topics.Root == "" {
		opts.Topics = mqtt.NewTopics(mqtt.DefaultTopicRoot)
	}

	c := &Coordinator{
		mqtt:   opts.MQTT,
		topics: opts.Topics,
		qos:    opts.QoS,
		logger: opts.Logger,
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}

	engineOpts := append([]game.Option{game.WithLogger(c.logger)}, opts.EngineOptions...)
	c.engine = game.NewEngine(opts.Rules, opts.Topics, opts.Publisher, c, engineOpts...)

	return c, nil
}

// Engine returns the game engine driven by this coordinator.
func (c *Coordinator) Engine() *game.Engine {
	return c.engine
}

// Stats returns inbound traffic counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Malformed: c.malformed.Load(),
		Unknown:   c.unknown.Load(),
		Rejected:  c.rejected.Load(),
	}
}

// Start subscribes to the fleet connect and disconnect topics.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.mqtt.Subscribe(c.topics.Connect(), c.qos, c.handleConnect); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.topics.Connect(), err)
	}
	if err := c.mqtt.Subscribe(c.topics.Disconnect(), c.qos, c.handleDisconnect); err != nil {
		_ = c.mqtt.Unsubscribe(c.topics.Connect()) //nolint:errcheck // best-effort rollback
		return fmt.Errorf("subscribing to %s: %w", c.topics.Disconnect(), err)
	}

	c.started.Store(true)
	c.logger.Info("coordinator started",
		"connect_topic", c.topics.Connect(),
		"disconnect_topic", c.topics.Disconnect(),
	)
	return nil
}

// Stop cancels every pending timer and stops accepting fleet traffic.
// Safe to call more than once.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.engine.Shutdown()

		if c.started.Load() {
			for _, topic := range []string{c.topics.Connect(), c.topics.Disconnect()} {
				if err := c.mqtt.Unsubscribe(topic); err != nil {
					c.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
				}
			}
		}

		c.logger.Info("coordinator stopped", "sessions", c.engine.Registry().Len())
	})
}

// SubscribeDevice subscribes to a device's response topic. It runs inside the
// connect handler, so it never waits for the broker's SUBACK.
func (c *Coordinator) SubscribeDevice(deviceID string) error {
	return c.mqtt.SubscribeAsync(c.topics.Response(deviceID), c.qos, c.handleResponse)
}

// UnsubscribeDevice drops a device's response subscription without waiting.
func (c *Coordinator) UnsubscribeDevice(deviceID string) error {
	return c.mqtt.UnsubscribeAsync(c.topics.Response(deviceID))
}

func (c *Coordinator) handleConnect(topic string, payload []byte) error {
	c.received.Add(1)

	msg, err := decodeConnect(payload)
	if err != nil {
		c.malformed.Add(1)
		c.logger.Warn("dropping malformed connect", "topic", topic, "error", err)
		return nil
	}

	if msg.Restart {
		err = c.engine.Restart(msg.ID, game.ReasonDeviceRequest)
		if errors.Is(err, game.ErrUnknownDevice) {
			c.unknown.Add(1)
			c.logger.Warn("restart requested by unknown device", "device_id", msg.ID)
			return nil
		}
	} else {
		err = c.engine.Connect(msg.ID, msg.Name, msg.HP)
	}

	return c.result(msg.ID, "connect", err)
}

func (c *Coordinator) handleDisconnect(topic string, payload []byte) error {
	c.received.Add(1)

	msg, err := decodeDisconnect(payload)
	if err != nil {
		c.malformed.Add(1)
		c.logger.Warn("dropping malformed disconnect", "topic", topic, "error", err)
		return nil
	}

	return c.result(msg.ID, "disconnect", c.engine.Disconnect(msg.ID))
}

func (c *Coordinator) handleResponse(topic string, payload []byte) error {
	c.received.Add(1)

	deviceID, ok := c.topics.DeviceFromResponse(topic)
	if !ok {
		c.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrUnexpectedTopic, topic)
	}

	resp, err := DecodeResponse(payload)
	if err != nil {
		c.malformed.Add(1)
		c.logger.Warn("dropping malformed response", "device_id", deviceID, "error", err)
		return nil
	}

	switch r := resp.(type) {
	case AckResponse:
		err = c.engine.ReceiveAck(deviceID, r.Sequence)
	case GuessResponse:
		err = c.engine.ReceiveGuess(deviceID, r.Guess, r.Sequence)
	}

	return c.result(deviceID, "response", err)
}

// result classifies an engine error. Expected rejections are logged and
// swallowed; anything else is returned for the MQTT client to log.
func (c *Coordinator) result(deviceID, kind string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrUnknownDevice):
		c.unknown.Add(1)
		c.logger.Warn("message from unknown device", "device_id", deviceID, "kind", kind)
		return nil
	case errors.Is(err, game.ErrSessionTerminated),
		errors.Is(err, game.ErrGameOver),
		errors.Is(err, game.ErrMalformedGuess),
		errors.Is(err, game.ErrEngineClosed):
		c.rejected.Add(1)
		c.logger.Debug("message rejected", "device_id", deviceID, "kind", kind, "reason", err)
		return nil
	default:
		return fmt.Errorf("%s from %s: %w", kind, deviceID, err)
	}
}
