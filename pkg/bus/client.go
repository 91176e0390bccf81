// Package bus wraps github.com/nats-io/nats.go with the connection
// lifecycle, reconnect logging, and publish/subscribe helpers the rest of
// the server builds on. It deliberately knows nothing about the event
// plane's subjects or payload encoding (internal/eventplane owns that) —
// it only owns the NATS connection itself, the way go-server/pkg/nats
// owns the connection for its WebSocket fan-out.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/odin-social/timeline-server/internal/metrics"
)

// ConnectTimeout is the only timeout this package imposes: the time
// allowed to establish the initial bus connection. Query and publish
// operations have no intrinsic timeout; callers wrap them with a context
// if they need one.
const ConnectTimeout = 3 * time.Second

// Config holds NATS connection options.
type Config struct {
	Host            string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
}

// Client is a cheap-to-clone handle to a shared NATS connection. Per
// spec.md §5, the underlying *nats.Conn is itself thread-safe; Client
// just adds logging and a uniform Publish/Subscribe surface.
type Client struct {
	conn    *nats.Conn
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Connect dials the bus with a fixed 3-second connect timeout.
func Connect(cfg Config, logger zerolog.Logger, m *metrics.Metrics) (*Client, error) {
	c := &Client{logger: logger, metrics: m}

	opts := []nats.Option{
		nats.Timeout(ConnectTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.ConnectHandler(c.onConnect),
		nats.DisconnectErrHandler(c.onDisconnect),
		nats.ReconnectHandler(c.onReconnect),
		nats.ErrorHandler(c.onError),
	}

	conn, err := nats.Connect(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: connect to %s: %w", cfg.Host, err)
	}
	c.conn = conn
	return c, nil
}

func (c *Client) onConnect(conn *nats.Conn) {
	c.logger.Info().Str("url", conn.ConnectedUrl()).Msg("bus: connected")
	c.metrics.SetBusConnected(true)
}

func (c *Client) onDisconnect(_ *nats.Conn, err error) {
	c.metrics.SetBusConnected(false)
	if err != nil {
		c.logger.Warn().Err(err).Msg("bus: disconnected with error")
		return
	}
	c.logger.Warn().Msg("bus: disconnected")
}

func (c *Client) onReconnect(conn *nats.Conn) {
	c.logger.Info().Str("url", conn.ConnectedUrl()).Msg("bus: reconnected")
	c.metrics.SetBusConnected(true)
	c.metrics.RecordBusReconnect()
}

func (c *Client) onError(_ *nats.Conn, sub *nats.Subscription, err error) {
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error().Err(err).Str("subject", subject).Msg("bus: async error")
}

// Publish sends raw bytes to subject. Publishers do not confirm delivery:
// a nil error only means the local client accepted the message.
func (c *Client) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", subject, err)
	}
	return nil
}

// Handler processes one received message's raw payload.
type Handler func(data []byte)

// Subscribe registers handler on subject, returning an Unsubscribe
// cleanup func. The subscription runs until ctx is cancelled or
// Unsubscribe is called, whichever comes first.
func (c *Client) Subscribe(ctx context.Context, subject string, handler Handler) (unsubscribe func(), err error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", subject, err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-done:
		}
	}()

	var closeOnce func()
	closeOnce = func() {
		_ = sub.Unsubscribe()
		close(done)
		closeOnce = func() {} // subsequent calls are no-ops
	}
	return func() { closeOnce() }, nil
}

// IsConnected reports whether the underlying connection is up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains and closes the underlying connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
