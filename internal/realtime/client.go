package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection bound to an authenticated user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string

	send   chan []byte
	joined map[string]struct{}

	// sendMu guards closed and the send channel's lifecycle. Every
	// write to send must hold it so a racing disconnect cannot close
	// the channel mid-send.
	sendMu sync.Mutex
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades the request and runs the connection's pumps. The
// caller must have authenticated userID already; the client is
// subscribed to its personal address before any frame is processed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, h.cfg.SendBuffer),
		joined: make(map[string]struct{}),
	}
	h.join(c, UserAddress(userID))
	h.logger.Info("client connected", "user_id", userID)

	go c.writePump()
	c.readPump()
	return nil
}

// readPump consumes inbound frames until the connection drops. Text
// frames are join/leave control messages; everything else is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
		c.hub.logger.Info("client disconnected", "user_id", c.userID)
	}()

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * c.hub.cfg.PingInterval))
	})
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.hub.cfg.PingInterval))

	for {
		mt, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("read error", "user_id", c.userID, "error", err)
			}
			return
		}
		if mt == websocket.TextMessage {
			c.hub.handleControl(c, raw)
		}
	}
}

// writePump drains the send channel to the connection and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data for the write pump without blocking. It reports
// false only when the client is live but its buffer is full; a closed
// client swallows the frame and reports true.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close marks the client closed and closes its send channel, ending the
// write pump. Idempotent.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// sendError pushes an error frame to the client, best effort.
func (c *Client) sendError(message string) {
	data, err := json.Marshal(Message{Event: "error", Payload: message})
	if err != nil {
		return
	}
	c.trySend(data)
}
