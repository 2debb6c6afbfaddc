package fanout

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. Clients only send small subscribe
	// requests.
	maxMessageSize = 4096
)

// clientCommand is the only inbound message shape clients send.
type clientCommand struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// Client is one downstream WebSocket subscriber.
type Client struct {
	id     string
	broker *Broker
	conn   *websocket.Conn
	logger *slog.Logger

	// send is never closed; the broker run loop drops a client by
	// closing done instead, so the read goroutine can queue an ack
	// without racing the drop.
	send chan []byte
	done chan struct{}
}

func newClient(b *Broker, conn *websocket.Conn, sendBuffer int, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		broker: b,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// ID returns the client's connection identifier.
func (c *Client) ID() string {
	return c.id
}

// readPump reads subscribe requests from the peer until the connection
// drops. A malformed message is logged and skipped, never fatal.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.broker.unregister <- c:
		case <-c.broker.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("client read error", "client_id", c.id, "error", err)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.logger.Warn("malformed client message", "client_id", c.id, "error", err)
			continue
		}

		switch cmd.Type {
		case "subscribe":
			c.broker.handleSubscribe(c, cmd.Symbols)
		default:
			c.logger.Debug("ignoring client message", "client_id", c.id, "type", cmd.Type)
		}
	}
}

// writePump drains the send queue to the peer and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Broker dropped the client.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
