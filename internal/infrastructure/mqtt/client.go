package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with pet tracker specific functionality.
//
// Connection state is owned by a single supervisor goroutine started with
// Start. Paho callbacks and connection attempts report to it over a channel,
// and IsConnected asks it over another one; nothing else reads or writes the
// state.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are recorded and re-applied on every (re)connection.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	// subscriptions tracks subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	reconnectInterval time.Duration
	events            chan connEvent
	queries           chan chan bool
	done              chan struct{}
	started           atomic.Bool
	cancel            context.CancelFunc

	// logger for connection and handler logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library, possibly
// concurrently for different topics.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// New builds a client for the configured broker without dialling it.
// Call Start to launch the reconnect supervisor.
func New(cfg config.MQTTConfig) *Client {
	return newClient(cfg, pahomqtt.NewClient)
}

// newClient lets tests substitute the paho client.
func newClient(cfg config.MQTTConfig, factory func(*pahomqtt.ClientOptions) pahomqtt.Client) *Client {
	topics := Topics{Base: cfg.TopicBase}

	c := &Client{
		cfg:               cfg,
		topics:            topics,
		subscriptions:     make(map[string]subscription),
		reconnectInterval: time.Duration(cfg.ReconnectInterval) * time.Second,
		events:            make(chan connEvent),
		queries:           make(chan chan bool),
		done:              make(chan struct{}),
	}
	if c.reconnectInterval <= 0 {
		c.reconnectInterval = time.Second
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, topics, cfg.Broker.ClientID)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.report(connEvent{kind: eventLost, err: err})
	})

	c.client = factory(opts)
	return c
}

// Topics returns the topic builder bound to the configured base.
func (c *Client) Topics() Topics {
	return c.topics
}

// Close stops the supervisor, which publishes a graceful offline status and
// disconnects. It blocks until the supervisor has exited.
func (c *Client) Close() error {
	if c == nil || !c.started.Load() {
		return nil
	}
	c.cancel()
	<-c.done
	return nil
}

// Done is closed once the supervisor has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected asks the supervisor for the current connection state.
// It reports false before Start and after the supervisor has exited.
func (c *Client) IsConnected() bool {
	if !c.started.Load() {
		return false
	}

	reply := make(chan bool, 1)
	select {
	case c.queries <- reply:
	case <-c.done:
		return false
	}
	select {
	case connected := <-reply:
		return connected
	case <-c.done:
		return false
	}
}

// SetLogger sets a logger for connection events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
