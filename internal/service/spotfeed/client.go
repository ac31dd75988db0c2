package spotfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	drepo "OptPull/internal/domain/repository"
	applogger "OptPull/pkg/logger"
)

// Client maintains a websocket subscription to index spot ticks and exposes
// the last observed price per index. It satisfies the SpotSource contract.
type Client struct {
	apiKey         string
	websocketURL   string
	indices        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	conn      *websocket.Conn
	connected bool

	mu    sync.RWMutex
	spots map[string]float64
}

var _ drepo.SpotSource = (*Client)(nil)

// New creates a new spot feed Client.
func New(apiKey, websocketURL string, indices []string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) *Client {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		indices:        indices,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		spots:          make(map[string]float64),
	}
}

// Spot returns the last observed spot for an index.
func (c *Client) Spot(index string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.spots[index]
	return v, ok
}

// SetSpot records a spot price directly. Useful when a unit's own quote
// stream carries the underlying, and in tests.
func (c *Client) SetSpot(index string, price float64) {
	c.mu.Lock()
	c.spots[index] = price
	c.mu.Unlock()
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("spotfeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.log.Info("spotfeed connected")
	return nil
}

// Subscribe subscribes to the configured index symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("spotfeed not connected")
	}
	for _, idx := range c.indices {
		msg := map[string]string{"type": "subscribe", "symbol": idx}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", idx, err)
		}
		c.log.Info("spotfeed subscribed", applogger.String("index", idx))
	}
	return nil
}

type tickData struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	T int64   `json:"t"` // ms
}

type tickMessage struct {
	Type string     `json:"type"`
	Data []tickData `json:"data"`
}

// Run drives the read loop until ctx ends, reconnecting after failures.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.connected {
			if err := c.Connect(ctx); err != nil {
				c.log.Warn("spotfeed connect failed", applogger.Error(err))
				c.sleep(ctx)
				continue
			}
			if err := c.Subscribe(ctx); err != nil {
				c.log.Warn("spotfeed subscribe failed", applogger.Error(err))
				_ = c.Close()
				c.sleep(ctx)
				continue
			}
		}
		if err := c.readLoop(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("spotfeed read failed", applogger.Error(err))
		}
		_ = c.Close()
		c.sleep(ctx)
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("spotfeed read: %w", err)
		}
		var m tickMessage
		if err := json.Unmarshal(b, &m); err != nil {
			// ignore non-tick frames
			continue
		}
		if m.Type != "trade" {
			continue
		}
		c.mu.Lock()
		for _, d := range m.Data {
			if d.P > 0 {
				c.spots[d.S] = d.P
			}
		}
		c.mu.Unlock()
	}
}

func (c *Client) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.reconnectDelay):
	}
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates connection status.
func (c *Client) IsConnected() bool { return c.connected }
