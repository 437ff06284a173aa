package mqtt

import (
	"context"
	"fmt"
	"time"
)

type eventKind int

const (
	// eventAttemptDone carries the result of one dial; err is nil on success.
	eventAttemptDone eventKind = iota

	// eventLost is raised by paho when an established connection drops.
	eventLost
)

type connEvent struct {
	kind eventKind
	err  error
}

// Start launches the reconnect supervisor. It dials immediately and then
// every reconnect interval while disconnected, until ctx is cancelled or
// Close is called.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, c.cancel = context.WithCancel(ctx)
	go c.supervise(ctx)
	return nil
}

// supervise is the only goroutine that reads or writes the connection state.
func (c *Client) supervise(ctx context.Context) {
	defer close(c.done)

	var (
		connected  bool
		attempting bool
	)

	dial := func() {
		if connected || attempting {
			return
		}
		attempting = true
		go c.attempt()
	}

	ticker := time.NewTicker(c.reconnectInterval)
	defer ticker.Stop()

	dial()
	for {
		select {
		case <-ctx.Done():
			c.shutdown(connected)
			return

		case reply := <-c.queries:
			reply <- connected

		case ev := <-c.events:
			switch ev.kind {
			case eventAttemptDone:
				attempting = false
				if ev.err != nil {
					c.logWarn("MQTT connection attempt failed", "error", ev.err, "retry_in", c.reconnectInterval)
					continue
				}
				connected = true
				c.logInfo("MQTT connected", "broker", c.cfg.Broker.Host)
				c.restoreSubscriptions()
				c.publishOnlineStatus()

			case eventLost:
				if !connected {
					continue
				}
				connected = false
				c.logWarn("MQTT connection lost", "error", ev.err)
			}

		case <-ticker.C:
			dial()
		}
	}
}

// attempt dials the broker once and reports the outcome to the supervisor.
func (c *Client) attempt() {
	token := c.client.Connect()
	var err error
	switch {
	case !token.WaitTimeout(defaultConnectTimeout):
		err = fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	case token.Error() != nil:
		err = fmt.Errorf("%w: %w", ErrConnectionFailed, token.Error())
	}
	c.report(connEvent{kind: eventAttemptDone, err: err})
}

// report delivers an event to the supervisor, or drops it once it has exited.
func (c *Client) report(ev connEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// shutdown publishes a graceful offline status and disconnects.
func (c *Client) shutdown(connected bool) {
	if connected {
		token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, buildOfflinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
}

// restoreSubscriptions (re)subscribes every recorded topic. Tokens are not
// awaited so the supervisor never blocks on the broker.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishOnlineStatus publishes the core's online status to the system status topic.
func (c *Client) publishOnlineStatus() {
	c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, buildOnlinePayload(c.cfg.Broker.ClientID))
}

func (c *Client) logInfo(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}
