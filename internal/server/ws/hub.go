// Package ws bridges the in-process distribution channel to WebSocket
// clients. Each connection gets its own subscription, so the
// snapshot-then-delta handshake and the slow-consumer drop policy apply per
// socket.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rohidaprem/crypto-order-book/internal/distribution"
	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 1024
)

// upgrader configures the WebSocket upgrade parameters. Origin policy is
// enforced by the CORS middleware in front of the mux.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub upgrades HTTP requests to WebSocket connections and streams each one
// the distribution channel's snapshot-then-delta sequence as JSON text
// frames.
type Hub struct {
	channel *distribution.Channel
	logger  *slog.Logger
}

// NewHub creates a Hub serving subscriptions from the given channel.
func NewHub(channel *distribution.Channel, logger *slog.Logger) *Hub {
	return &Hub{
		channel: channel,
		logger:  logger.With(slog.String("component", "ws")),
	}
}

// HandleWS upgrades the request and registers the connection as a channel
// subscriber. When admission control rejects the connection, the client
// receives a single error frame and a close frame instead of a stream.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub, err := h.channel.Subscribe()
	if err != nil {
		h.reject(conn, err)
		return
	}

	c := &client{
		conn:   conn,
		sub:    sub,
		hub:    h,
		logger: h.logger,
	}
	go c.writePump()
	go c.readPump()
}

// reject sends one error frame and closes the connection.
func (h *Hub) reject(conn *websocket.Conn, err error) {
	defer conn.Close()

	msg := "subscription failed"
	closeCode := websocket.CloseInternalServerErr
	if errors.Is(err, domain.ErrSubscriberLimit) {
		msg = domain.ErrSubscriberLimit.Error()
		closeCode = websocket.ClosePolicyViolation
	}

	frame, merr := json.Marshal(map[string]string{"type": "error", "error": msg})
	if merr == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, msg))

	h.logger.Warn("connection rejected", slog.String("reason", msg))
}

// client is one upgraded connection paired with its channel subscription.
type client struct {
	conn   *websocket.Conn
	sub    *distribution.Subscription
	hub    *Hub
	logger *slog.Logger
}

// writePump writes every subscription event to the socket as a JSON text
// frame and keeps the connection alive with periodic pings. It exits when
// the subscription is closed (including the slow-consumer drop) or a write
// fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}

			frame, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("marshal event", slog.String("error", err.Error()))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames until the peer goes away, then tears the
// subscription down. The stream is one-way; inbound data frames are ignored.
func (c *client) readPump() {
	defer func() {
		c.hub.channel.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
	}
}
