package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultSendBuffer     = 64
	defaultMaxMessageSize = 4096
)

// Client is one websocket connection watching one transaction. The feed is
// push-only; anything the peer sends besides control frames is discarded.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	transactionID uuid.UUID
	userID        uuid.UUID

	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

func newClient(hub *Hub, conn *websocket.Conn, transactionID, userID uuid.UUID) *Client {
	cfg := hub.cfg
	c := &Client{
		hub:            hub,
		conn:           conn,
		transactionID:  transactionID,
		userID:         userID,
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod(),
		maxMessageSize: cfg.MaxMessageSize,
	}
	if c.writeWait <= 0 {
		c.writeWait = defaultWriteWait
	}
	if c.pongWait <= 0 {
		c.pongWait = defaultPongWait
		c.pingPeriod = (defaultPongWait * 9) / 10
	}
	if c.maxMessageSize <= 0 {
		c.maxMessageSize = defaultMaxMessageSize
	}
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	c.send = make(chan []byte, buffer)
	return c
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(c.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && c.hub.logg != nil {
				ctx := c.hub.logg.WithUserID(context.Background(), c.userID.String())
				c.hub.logg.Warn(c.hub.logg.WithField(ctx, "error", err.Error()), "realtime connection closed unexpectedly")
			}
			return
		}
	}
}

// writePump sends each queued event as its own text frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
