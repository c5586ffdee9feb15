package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ErrNotConnected is returned when a send is attempted before Connect.
var ErrNotConnected = errors.New("ws not connected")

var pingMessage = map[string]any{"method": "ping"}

// Client maintains a Hyperliquid websocket connection with automatic
// reconnects. Subscriptions are remembered and replayed after a reconnect.
type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	subs []interface{}
}

func New(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Client {
	return &Client{url: url, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

// Connect dials the endpoint if no connection is held yet.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Subscribe records the subscription for replay and sends it on the
// current connection.
func (c *Client) Subscribe(ctx context.Context, sub interface{}) error {
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.send(ctx, conn, sub)
}

// Run reads messages and hands them to handler until ctx ends. Connection
// drops trigger a delayed reconnect with subscription replay.
func (c *Client) Run(ctx context.Context, handler func(json.RawMessage)) error {
	for {
		conn, err := c.session(ctx)
		if err != nil {
			return err
		}
		err = c.consume(ctx, conn, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("ws read loop ended", zap.Error(err))
		c.drop(conn)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// session returns a live connection with all known subscriptions replayed.
func (c *Client) session(ctx context.Context) (*websocket.Conn, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	conn := c.conn
	subs := append([]interface{}(nil), c.subs...)
	c.mu.Unlock()
	for _, sub := range subs {
		if err := c.send(ctx, conn, sub); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

// consume reads until the connection or context fails, keeping the venue's
// idle timeout at bay with periodic pings.
func (c *Client) consume(ctx context.Context, conn *websocket.Conn, handler func(json.RawMessage)) error {
	pingCtx, stopPing := context.WithCancel(ctx)
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		c.ping(pingCtx, conn)
	}()
	defer func() {
		stopPing()
		<-pingDone
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if handler != nil {
			handler(json.RawMessage(data))
		}
	}
}

func (c *Client) ping(ctx context.Context, conn *websocket.Conn) {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(ctx, conn, pingMessage); err != nil {
				return
			}
		}
	}
}

// drop closes the given connection and forgets it if it is still current.
func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "reset")
	if c.conn == conn {
		c.conn = nil
	}
}

func (c *Client) send(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
