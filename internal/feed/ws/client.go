// Package ws is a websocket market data client. The server sends one JSON
// event per text message:
//
//	{"type":"quote","symbol":"EURUSD","quote":{"bid":1.1,"ask":1.1001,"ts":"..."}}
//	{"type":"bar","symbol":"EURUSD","bar":{"open_time":"...","open":1.1,...}}
//
// The client reconnects with exponential backoff until its context ends.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"trading-signalcore/internal/model"
)

// Config holds the websocket feed settings.
type Config struct {
	// URL of the event server, e.g. "ws://localhost:8765/ws".
	URL string

	// Symbol filters events; empty accepts every symbol.
	Symbol string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// ReadTimeout closes a silent connection. Pings from the server extend
	// it. Defaults to 60s.
	ReadTimeout time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
}

// Client streams events from a websocket server.
type Client struct {
	cfg Config
	log *slog.Logger

	// Optional hooks.
	OnConnect    func(connected bool) // connection state changes
	OnReconnect  func()               // each reconnection attempt
	OnParseError func(err error)
}

// New creates a Client. Returns an error if the URL is unusable.
func New(cfg Config) (*Client, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ws feed: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("ws feed: unsupported scheme %q", u.Scheme)
	}
	return &Client{cfg: cfg, log: slog.With("component", "feed_ws", "url", cfg.URL)}, nil
}

// Start connects and sends every decoded event to out, in arrival order.
// Sends block: a slow consumer slows the reader instead of losing events.
// Blocks until ctx is cancelled; reconnects automatically on disconnect.
func (c *Client) Start(ctx context.Context, out chan<- model.Event) error {
	delay := c.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		received, err := c.runOnce(ctx, out)
		if err == nil {
			return nil
		}
		c.setConnected(false)
		if received {
			delay = c.cfg.ReconnectDelay
		}

		c.log.Warn("disconnected, reconnecting", "error", err, "delay", delay)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes one connection and reads until disconnect or cancel. A nil
// error means ctx ended. received reports whether any event got through.
func (c *Client) runOnce(ctx context.Context, out chan<- model.Event) (received bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	c.log.Info("connected")
	c.setConnected(true)

	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return received, nil
			}
			return received, err
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		ev, err := model.DecodeEvent(raw)
		if err != nil {
			c.log.Warn("dropping malformed event", "error", err, "raw", string(raw))
			if c.OnParseError != nil {
				c.OnParseError(err)
			}
			continue
		}
		if c.cfg.Symbol != "" && ev.Symbol != "" && ev.Symbol != c.cfg.Symbol {
			continue
		}

		select {
		case out <- ev:
			received = true
		case <-ctx.Done():
			return received, nil
		}
	}
}

func (c *Client) setConnected(v bool) {
	if c.OnConnect != nil {
		c.OnConnect(v)
	}
}
