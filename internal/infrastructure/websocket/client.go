package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pairchat/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// Client is one authenticated websocket connection.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu        sync.Mutex
	openRooms map[string]bool
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		openRooms: make(map[string]bool),
	}
}

// TrackRoom remembers which conversations the client has open so typing
// state can be cleared when the connection drops.
func (c *Client) TrackRoom(conversationID string, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if open {
		c.openRooms[conversationID] = true
	} else {
		delete(c.openRooms, conversationID)
	}
}

func (c *Client) OpenRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.openRooms))
	for id := range c.openRooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// ReadPump drains inbound frames and hands them to the dispatcher until the
// connection closes.
func (c *Client) ReadPump(m *Manager, dispatch func(*Client, []byte)) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Websocket read error for %s: %v", c.UserID, err)
			}
			return
		}
		dispatch(c, payload)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
