// Package server provides the WebSocket transport and the HTTP query
// boundary for the broker. Each connection gets a read pump feeding the
// event router and a write pump draining a buffered outbound queue.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywire/chat-broker/internal/config"
	"github.com/relaywire/chat-broker/internal/model"
	"github.com/relaywire/chat-broker/internal/router"
)

// Client owns one WebSocket connection. Its buffered send channel decouples
// fan-out from socket writes so one slow connection never delays delivery
// to others.
type Client struct {
	id      model.ConnID
	conn    *websocket.Conn
	send    chan []byte
	router  *router.Router
	cfg     config.ClientConfig
	limiter *rateLimiter
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection. The caller attaches the client to
// the router and starts the pumps.
func NewClient(id model.ConnID, conn *websocket.Conn, r *router.Router, cfg config.ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		router:  r,
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		logger:  logger.With("conn_id", id),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() model.ConnID {
	return c.id
}

// Send marshals an event and queues it without blocking. Returns false if
// the queue is full or the client is closed; implements router.Sink.
func (c *Client) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal outbound event", "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run starts the read and write pumps and blocks until the read pump exits.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// close marks the client closed and closes the send channel exactly once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.router.Disconnect(c.id)
		c.close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection", "error", err)
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout)); err != nil {
		c.logger.Warn("error setting read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.logger.Warn("rate limit exceeded, discarding frame",
				"burst", c.cfg.RateLimit.Burst,
				"refill_interval", c.cfg.RateLimit.RefillInterval,
			)
			continue
		}

		c.router.HandleFrame(c.id, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection", "error", err)
		}
	}()

	for {
		select {
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Warn("error setting write deadline", "error", err)
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Warn("write error", "error", err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "max_bytes", c.cfg.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.logger.Info("connection closed", "reason", err)
	default:
		c.logger.Warn("read error", "error", err)
	}
}
