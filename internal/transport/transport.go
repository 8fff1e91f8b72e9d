// Package transport is hyperliquidity's WebSocket boundary: a
// reconnecting worker that subscribes to Hyperliquid's user-scoped
// feeds (orderUpdates, userFills, webData2) and forwards each frame
// onto a single channel, so that everything downstream — including
// callbacks the underlying socket driver invokes on its own read
// goroutine — funnels through one consumer instead of needing its own
// locking.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AlliedToasters/hyperliquidity/internal/infra"
)

// Message is one decoded WS frame, keyed by its subscription channel.
type Message struct {
	Channel string
	Data    json.RawMessage
}

// subscription is a Hyperliquid WS subscribe request body.
type subscription struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type subscribeEnvelope struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

// Client is a reconnecting Hyperliquid user-feed WS worker. It owns no
// business logic — every decoded frame is pushed to Inbox for the
// orchestrator's single-threaded event loop to consume.
type Client struct {
	url     string
	address string
	id      string

	Inbox chan Message

	ReadTimeout  time.Duration
	PingInterval time.Duration

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	aliveMu sync.RWMutex
	alive   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient builds a Client that will subscribe to orderUpdates,
// userFills, and webData2 for address once connected.
func NewClient(url, address string) *Client {
	return &Client{
		url:          url,
		address:      address,
		id:           "hyperliquid-ws-" + address,
		Inbox:        make(chan Message, 256),
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// IsAlive reports whether the underlying socket is currently connected.
// The orchestrator polls this every tick to detect reconnects, the way
// ws_manager.is_alive() is polled by _check_ws_health in the original.
func (c *Client) IsAlive() bool {
	c.aliveMu.RLock()
	defer c.aliveMu.RUnlock()
	return c.alive
}

func (c *Client) setAlive(v bool) {
	c.aliveMu.Lock()
	c.alive = v
	c.aliveMu.Unlock()
}

// Start begins the connect/read/reconnect loop in the background.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Stop tears the worker down and closes Inbox.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.close()
	c.wg.Wait()
	close(c.Inbox)
}

func (c *Client) runLoop(ctx context.Context) {
	defer c.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			c.setAlive(false)
			delay := infra.CalculateBackoff(retry)
			slog.Warn("hyperliquid ws connect failed", slog.String("id", c.id), slog.Any("err", err), slog.Int("retry", retry), slog.Duration("delay", delay))
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		c.setAlive(true)
		c.process(ctx)
		c.setAlive(false)
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", infra.GetUserAgent())

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	for _, feed := range []string{"orderUpdates", "userFills", "webData2"} {
		if err := c.subscribe(feed); err != nil {
			c.close()
			return fmt.Errorf("subscribe %s: %w", feed, err)
		}
	}

	if c.PingInterval > 0 {
		go c.pingLoop(ctx)
	}

	slog.Info("hyperliquid ws connected", slog.String("id", c.id))
	return nil
}

func (c *Client) subscribe(feedType string) error {
	env := subscribeEnvelope{
		Method:       "subscribe",
		Subscription: subscription{Type: feedType, User: c.address},
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.Write(websocket.TextMessage, body)
}

func (c *Client) process(ctx context.Context) {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("hyperliquid ws read error", slog.String("id", c.id), slog.Any("err", err))
			c.close()
			return
		}

		var frame struct {
			Channel string          `json:"channel"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Warn("hyperliquid ws malformed frame", slog.String("id", c.id), slog.Any("err", err))
			continue
		}

		select {
		case c.Inbox <- Message{Channel: frame.Channel, Data: frame.Data}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Write(websocket.PingMessage, nil); err != nil {
				slog.Warn("hyperliquid ws ping failed", slog.String("id", c.id), slog.Any("err", err))
				c.close()
				return
			}
		}
	}
}

// Write sends a raw frame over the current connection.
func (c *Client) Write(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("hyperliquid ws: not connected")
	}
	return conn.WriteMessage(msgType, data)
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
